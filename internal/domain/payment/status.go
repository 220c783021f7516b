package payment

// Status is the closed set of payment states. PENDING is the only
// non-terminal state.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusSuccess   Status = "SUCCESS"
	StatusCancelled Status = "CANCELLED"
	StatusTimeout   Status = "TIMEOUT"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:   {StatusSuccess: true, StatusCancelled: true, StatusTimeout: true},
	StatusSuccess:   {},
	StatusCancelled: {},
	StatusTimeout:   {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func IsTerminal(s Status) bool {
	return len(validNext[s]) == 0
}

// Method is the closed set of supported payment channels.
type Method string

const (
	MethodAlipay   Method = "ALIPAY"
	MethodWechat   Method = "WECHAT"
	MethodBankCard Method = "BANK_CARD"
)

func ValidMethod(m Method) bool {
	switch m {
	case MethodAlipay, MethodWechat, MethodBankCard:
		return true
	}
	return false
}
