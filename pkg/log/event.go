package log

import "time"

// Event represents one registry log event.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// Category classifies which table the event concerns.
	Category Category `cbor:"2,keyasint"`

	// Op is the operation performed.
	Op Op `cbor:"3,keyasint"`

	// NodeIndex is the node table index, if the event concerns a node.
	NodeIndex *int `cbor:"4,keyasint,omitempty"`

	// Unicast is the primary unicast address, if applicable.
	Unicast *uint16 `cbor:"5,keyasint,omitempty"`

	// NetIdx is the network key index, if applicable.
	NetIdx *uint16 `cbor:"6,keyasint,omitempty"`

	// AppIdx is the application key index, if applicable.
	AppIdx *uint16 `cbor:"7,keyasint,omitempty"`

	// Detail carries optional free-form context (node name, model id).
	Detail string `cbor:"8,keyasint,omitempty"`

	// Err is set when the event records a failed operation.
	Err string `cbor:"9,keyasint,omitempty"`
}

// Category classifies which table an event concerns.
type Category uint8

const (
	// CategoryNode concerns the node table.
	CategoryNode Category = 0
	// CategoryNetKey concerns the subnet table.
	CategoryNetKey Category = 1
	// CategoryAppKey concerns the application key table.
	CategoryAppKey Category = 2
	// CategoryBinding concerns model binding state.
	CategoryBinding Category = 3
	// CategoryFastProv concerns the fast-provisioning override.
	CategoryFastProv Category = 4
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryNode:
		return "NODE"
	case CategoryNetKey:
		return "NETKEY"
	case CategoryAppKey:
		return "APPKEY"
	case CategoryBinding:
		return "BINDING"
	case CategoryFastProv:
		return "FASTPROV"
	default:
		return "UNKNOWN"
	}
}

// Op is the operation an event records.
type Op uint8

const (
	// OpAdd records a row creation.
	OpAdd Op = 0
	// OpDelete records a row deletion.
	OpDelete Op = 1
	// OpReset records a node reset.
	OpReset Op = 2
	// OpBind records a model binding.
	OpBind Op = 3
	// OpUnbind records a model unbinding.
	OpUnbind Op = 4
	// OpCascade records a dependent deletion during a net-key delete.
	OpCascade Op = 5
	// OpBootstrap records local network creation.
	OpBootstrap Op = 6
	// OpRename records a node name change.
	OpRename Op = 7
)

// String returns the operation name.
func (o Op) String() string {
	switch o {
	case OpAdd:
		return "ADD"
	case OpDelete:
		return "DELETE"
	case OpReset:
		return "RESET"
	case OpBind:
		return "BIND"
	case OpUnbind:
		return "UNBIND"
	case OpCascade:
		return "CASCADE"
	case OpBootstrap:
		return "BOOTSTRAP"
	case OpRename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}
