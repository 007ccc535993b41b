package constant

// Socket event names shared with the editor client. These are wire-level
// identifiers; renaming one is a breaking protocol change.
const (
	EventJoin           = "join"
	EventJoined         = "joined"
	EventDisconnected   = "disconnected"
	EventBufferChange   = "buffer-change"
	EventRequestSync    = "request-sync"
	EventChat           = "chat"
	EventChatMessage    = "chat-message"
	EventExecuteRequest = "execute-request"
	EventExecuteResult  = "execute-result"
	EventError          = "error"
)

// RecipientEveryone marks a chat message addressed to the whole room.
const RecipientEveryone = "everyone"

// DeliveryTopic is the in-process bus topic carrying fan-out envelopes.
const DeliveryTopic = "room.deliveries"

// Language tags accepted by the execution sandbox.
const (
	LanguageCpp    = "cpp"
	LanguagePython = "python"
)

// Execution stages reported back with a result, so the client can tell a
// compiler diagnostic apart from a runtime failure.
const (
	StageCompile = "compile"
	StageRun     = "run"
	StageSpawn   = "spawn"
)
