package winsec

// ObjectType selects what kind of securable object a descriptor retrieval
// refers to. Values match the native SE_OBJECT_TYPE enumeration.
type ObjectType int32

const (
	UnknownObject ObjectType = iota
	FileObject
	ServiceObject
	PrinterObject
	RegistryKeyObject
	LMShareObject
	KernelObject
)
