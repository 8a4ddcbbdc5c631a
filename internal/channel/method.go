package channel

// Method is the closed set of methods the print channel understands
type Method int

const (
	MethodUnknown Method = iota
	MethodPrintUsbBytes
	MethodPrintUsbText
)

var methodNames = map[string]Method{
	"printUsbBytes": MethodPrintUsbBytes,
	"printUsbText":  MethodPrintUsbText,
}

// ParseMethod matches a method name exactly; anything else is MethodUnknown
func ParseMethod(name string) Method {
	return methodNames[name]
}

func (m Method) String() string {
	switch m {
	case MethodPrintUsbBytes:
		return "printUsbBytes"
	case MethodPrintUsbText:
		return "printUsbText"
	default:
		return "unknown"
	}
}
