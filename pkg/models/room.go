package models

type Room struct {
	Name string `json:"name"`
	// First-seen timestamp (ns); recorded on first join, never updated
	CreatedTS int64 `json:"created_ts"`
}

// Session binds a live connection to the username and room it currently
// occupies. A connection has at most one session at a time.
type Session struct {
	ConnID   string `json:"conn_id"`
	Username string `json:"username"`
	Room     string `json:"room"`
	JoinedTS int64  `json:"joined_ts"`
}
