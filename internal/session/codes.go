package session

// ResultCode is the closed taxonomy for every expected outcome of a
// session operation. Codes are returned, never panicked; the registry
// surfaces them to callers unchanged.
type ResultCode int

const (
	InvalidParameter ResultCode = iota - 2
	UnhandledError
	Ok
	AlreadyJoined
	SessionNotFound
	NotJoinedUser
	DuplicateEntry
	JoinRejected
)

func (c ResultCode) String() string {
	switch c {
	case InvalidParameter:
		return "invalid_parameter"
	case UnhandledError:
		return "unhandled_error"
	case Ok:
		return "ok"
	case AlreadyJoined:
		return "already_joined"
	case SessionNotFound:
		return "session_not_found"
	case NotJoinedUser:
		return "not_joined_user"
	case DuplicateEntry:
		return "duplicate_entry"
	case JoinRejected:
		return "join_rejected"
	default:
		return "unknown"
	}
}
