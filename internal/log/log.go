package log

const (
	// FldFile is the name of the log field for storing file name information
	FldFile = "file"
	// FldPath is the name of the log field for storing path name information
	FldPath = "path"
	// FldTransport is the name of the log field for storing a transport name
	FldTransport = "transport"
	// FldSession is the name of the log field for storing the session ID
	FldSession = "session"
	// FldUser is the name of the log field for storing the email of the currently active user
	FldUser = "user"
	// FldEvent is the name of the log field for storing an event ID
	FldEvent = "event"
	// FldItem is the name of the log field for storing an item ID
	FldItem = "item"
	// FldState is the name of the log field for storing a lifecycle state
	FldState = "state"
	// FldVersion is the version number of the application
	FldVersion = "ver"
	// FldCount is the number of affected entities of an operation
	FldCount = "count"
	// FldSearch is a search term used in a search
	FldSearch = "search"
	// FldOffset is the requested offset value in a search
	FldOffset = "offset"
	// FldLimit is the requested result limit in a search
	FldLimit = "limit"
)
