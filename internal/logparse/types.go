package logparse

import "time"

// Exchange is one question/answer interaction reconstructed from a block.
type Exchange struct {
	Question  string    `json:"question"`
	Modules   []string  `json:"modules"`
	Correct   bool      `json:"correct"`
	Timestamp time.Time `json:"timestamp"`
}

// UserLog is a user's exchanges in log order.
type UserLog struct {
	User      string     `json:"user"`
	Exchanges []Exchange `json:"exchanges"`
}

// Report groups exchanges by user, users in first-seen order.
type Report struct {
	Users []UserLog `json:"users"`
}

// Lookup returns the exchanges recorded for user.
func (r *Report) Lookup(user string) ([]Exchange, bool) {
	for _, ul := range r.Users {
		if ul.User == user {
			return ul.Exchanges, true
		}
	}
	return nil, false
}

// Len is the total number of exchanges across all users.
func (r *Report) Len() int {
	n := 0
	for _, ul := range r.Users {
		n += len(ul.Exchanges)
	}
	return n
}

// Fallbacks counts exchanges answered with the fallback response.
func (r *Report) Fallbacks() int {
	n := 0
	for _, ul := range r.Users {
		for _, ex := range ul.Exchanges {
			if !ex.Correct {
				n++
			}
		}
	}
	return n
}

// WithoutFallbacks returns a copy of r with fallback exchanges removed.
// Users left without exchanges are kept so the user set stays stable.
func (r *Report) WithoutFallbacks() *Report {
	out := &Report{Users: make([]UserLog, 0, len(r.Users))}
	for _, ul := range r.Users {
		kept := make([]Exchange, 0, len(ul.Exchanges))
		for _, ex := range ul.Exchanges {
			if ex.Correct {
				kept = append(kept, ex)
			}
		}
		out.Users = append(out.Users, UserLog{User: ul.User, Exchanges: kept})
	}
	return out
}
