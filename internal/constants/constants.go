package constants

const (
	// 上游 session 層帶入的會員識別
	MemberIDHeader  = "X-Member-ID"
	RequestIDHeader = "request_id"
)

// for api context
type ContextKey string

const (
	MemberIDKey ContextKey = "member_id"
)

type RequestID string

const (
	RequestIDKey RequestID = "request_id"
)
