package framer

// Command is the marker interface for records the command dispatcher
// hands to the Framer. Concrete commands mirror the five contracts of
// spec.md §4.2.
type Command interface {
	isCommand()
}

type LibraryConnectCommand struct {
	LibraryID      int32
	CorrelationID  int64
	AeronSessionID int32
}

func (LibraryConnectCommand) isCommand() {}

type InitiateConnectionCommand struct {
	LibraryID           int32
	CorrelationID       int64
	Host                string
	Port                int
	SenderCompID        string
	SenderSubID         string
	SenderLocationID    string
	TargetCompID        string
	Qualifier           string
	SequenceNumberType  int
	InitialSeqNum       int
	Username            string
	Password            string
	HeartbeatIntervalS  int
}

func (InitiateConnectionCommand) isCommand() {}

func (c InitiateConnectionCommand) compositeKey() CompositeKey {
	return CompositeKey{
		SenderCompID: c.SenderCompID,
		TargetCompID: c.TargetCompID,
		Qualifier:    c.Qualifier,
	}
}

type ReleaseSessionCommand struct {
	LibraryID          int32
	ConnectionID       int64
	CorrelationID      int64
	SessionState       GatewaySessionState
	HeartbeatIntervalS int
	LastSentSeq        int
	LastRecvSeq        int
	Username           string
	Password           string
}

func (ReleaseSessionCommand) isCommand() {}

type RequestSessionCommand struct {
	LibraryID        int32
	SessionID        int64
	CorrelationID    int64
	LastReceivedSeq  int64
}

func (RequestSessionCommand) isCommand() {}

type DisconnectCommand struct {
	LibraryID    int32
	ConnectionID int64
	Reason       DisconnectReason
}

func (DisconnectCommand) isCommand() {}

// commandLibraryID extracts the library id every concrete command
// carries, so the dispatcher can treat any inbound command as evidence
// the library is alive, independent of an explicit LibraryConnect
// (spec.md §4.1(e) "check library ... heartbeats against the Clock").
func commandLibraryID(cmd Command) int32 {
	switch c := cmd.(type) {
	case LibraryConnectCommand:
		return c.LibraryID
	case InitiateConnectionCommand:
		return c.LibraryID
	case ReleaseSessionCommand:
		return c.LibraryID
	case RequestSessionCommand:
		return c.LibraryID
	case DisconnectCommand:
		return c.LibraryID
	default:
		return EngineLibraryID
	}
}
