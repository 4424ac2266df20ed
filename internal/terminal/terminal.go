// Package terminal describes the single-threaded trading terminal the bridge fronts
// and the Gate that serializes every call into it.
package terminal

// Native result codes, mirroring the terminal SDK's last_error() codes.
const (
	CodeOK             = 1
	CodeFail           = -1
	CodeInvalidParams  = -2
	CodeNotFound       = -4
	CodeUnsupported    = -5
	CodeAuthFailed     = -6
	CodeNoConnection   = -10004
	CodeInitFailed     = -10005
	CodeNotInitialized = -10007
)

// LastError is the terminal's most recent native error.
type LastError struct {
	Code    *int   `json:"code"`
	Message string `json:"message"`
}

// NewLastError builds a LastError with a code.
func NewLastError(code int, message string) LastError {
	return LastError{Code: &code, Message: message}
}

// NoDriver is reported when no terminal is configured at all.
var NoDriver = LastError{Message: "terminal driver not available"}

// SymbolInfo is one catalog entry.
type SymbolInfo struct {
	Name    string `json:"name" yaml:"name"`
	Path    string `json:"path" yaml:"path"` // category path, e.g. "Forex\\Majors\\EURUSD"
	Visible bool   `json:"visible" yaml:"visible"`
	Digits  int    `json:"digits" yaml:"digits"`
}

// RawTick is a tick as the terminal reports it. Any field may be missing.
type RawTick struct {
	Time       *int64
	TimeMsc    *int64
	Bid        *float64
	Ask        *float64
	Last       *float64
	Volume     *float64
	VolumeReal *float64
	Flags      *int64
}

// Record is a loosely-shaped terminal structure (account, position, order).
type Record map[string]any

// Terminal is the native, non-reentrant terminal API. Implementations are not
// safe for concurrent use; all access goes through a Gate.
type Terminal interface {
	// Initialize connects (or confirms the connection). Calling it again is cheap.
	Initialize() error
	Shutdown() error
	LastError() LastError

	// SymbolInfo looks a symbol up by its exact name. Returns ErrSymbolNotFound.
	SymbolInfo(name string) (SymbolInfo, error)
	SymbolSelect(name string, enable bool) error
	// SymbolsGet lists catalog entries matching a comma separated group of
	// wildcard patterns ("*" and "?", "!" negates). An empty group lists everything.
	SymbolsGet(group string) ([]SymbolInfo, error)
	// SymbolInfoTick returns the current tick. Returns ErrNoTickData.
	SymbolInfoTick(name string) (RawTick, error)

	AccountInfo() (Record, error)
	Positions(symbol string) ([]Record, error)
	Orders(symbol string) ([]Record, error)
}
