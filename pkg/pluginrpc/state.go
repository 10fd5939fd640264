package pluginrpc

// lifecycle is the server's position in the handshake state machine
// (spec §4.5):
//
//	UNINIT --initialize--> READY --request/response*--> READY
//	  |                      |
//	  |                      +--shutdown--> CLEANUP --> EXIT
//	  +--any-other--> error: not initialized (stays in UNINIT)
type lifecycle int

const (
	lifecycleUninit lifecycle = iota
	lifecycleReady
	lifecycleCleanup
	lifecycleExit
)

func (l lifecycle) String() string {
	switch l {
	case lifecycleUninit:
		return "UNINIT"
	case lifecycleReady:
		return "READY"
	case lifecycleCleanup:
		return "CLEANUP"
	case lifecycleExit:
		return "EXIT"
	default:
		return "UNKNOWN"
	}
}

// methodsAllowedBeforeInit is the narrow set of methods usable before
// initialize completes (spec §4.5).
var methodsAllowedBeforeInit = map[string]bool{
	"$/cancel": true,
	"$/ping":   true,
	"shutdown": true,
}
