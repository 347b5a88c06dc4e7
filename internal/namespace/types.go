package namespace

// ObjectType classifies a namespace object.
type ObjectType string

// Object types, mirroring the host platform's object model.
const (
	TypeDevice  ObjectType = "device"
	TypeChannel ObjectType = "channel"
	TypeState   ObjectType = "state"
)

// ValueType is the inferred type of a leaf value.
type ValueType string

// Leaf value types.
const (
	ValueBoolean ValueType = "boolean"
	ValueNumber  ValueType = "number"
	ValueString  ValueType = "string"
	ValueJSON    ValueType = "json"
)

// Object describes a namespace container or state object.
type Object struct {
	// Path is the dotted namespace path (unique).
	Path string

	// Type classifies the object (device, channel, state).
	Type ObjectType

	// Name is a human-readable display label.
	Name string

	// Role hints at the leaf's purpose ("indicator", "button", "json", ...).
	// Empty for containers.
	Role string

	// ValueType is the inferred value type. Empty for containers.
	ValueType ValueType

	// Writable marks leaves that accept external write intents.
	Writable bool
}

// Leaf is one addressable scalar value in the namespace.
type Leaf struct {
	Path     string
	Value    any
	Type     ValueType
	Role     string
	Name     string
	Writable bool
}

// Update describes a leaf value change, delivered to watchers.
type Update struct {
	Path    string `json:"path"`
	Value   any    `json:"value"`
	Type    string `json:"type"`
	Ack     bool   `json:"ack"`
	Updated string `json:"updated"`
}
