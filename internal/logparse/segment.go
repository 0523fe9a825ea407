package logparse

import "strings"

// SplitLines breaks raw log text into lines, dropping the CR of CRLF endings.
func SplitLines(raw string) []string {
	lines := strings.Split(raw, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// DiscoverUsers returns the distinct user ids that ask questions in raw, in
// the order they first appear. A user is only recognised on a line where the
// "[user: <id>]" tag is directly followed by the input marker.
func (c Config) DiscoverUsers(raw string) []string {
	re := c.userPattern()
	var users []string
	seen := make(map[string]bool)
	for _, line := range SplitLines(raw) {
		for _, m := range re.FindAllStringSubmatch(line, -1) {
			if !seen[m[1]] {
				seen[m[1]] = true
				users = append(users, m[1])
			}
		}
	}
	return users
}

// UserLines filters lines down to those attributed to user, keeping order.
func (c Config) UserLines(lines []string, user string) []string {
	needle := user
	if c.Attribution == AttributeTagged {
		needle = userTag(user)
	}
	var out []string
	for _, l := range lines {
		if strings.Contains(l, needle) {
			out = append(out, l)
		}
	}
	return out
}

// SegmentBlocks partitions the lines attributed to user into blocks. Each
// block starts at a line containing the input marker and runs up to the next
// one; lines before the first marker belong to no block.
func (c Config) SegmentBlocks(lines []string, user string) [][]string {
	userLines := c.UserLines(lines, user)

	var starts []int
	for i, l := range userLines {
		if strings.Contains(l, c.InputMarker) {
			starts = append(starts, i)
		}
	}

	blocks := make([][]string, 0, len(starts))
	for i, start := range starts {
		end := len(userLines)
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		blocks = append(blocks, userLines[start:end])
	}
	return blocks
}

// DetectModules reports which known modules appear in text, in declaration
// order. Matching is case-sensitive substring containment.
func (c Config) DetectModules(text string) []string {
	mods := []string{}
	for _, m := range c.KnownModules {
		if strings.Contains(text, m) {
			mods = append(mods, m)
		}
	}
	return mods
}

// ResponseModule resolves the single module credited with an answer.
func (c Config) ResponseModule(modules []string) string {
	for _, m := range modules {
		if m == c.PrimaryModule {
			return c.PrimaryModule
		}
	}
	return c.DefaultModule
}
