// Package failcode maps provider failure codes to user-facing messages.
// The mapping is a static table so that newly documented provider codes
// are additions to the table, not changes to control flow.
package failcode

// Known provider failure codes returned on the failure redirect or in a
// confirmation error body.
const (
	CodePayProcessCanceled = "PAY_PROCESS_CANCELED"
	CodePayProcessAborted  = "PAY_PROCESS_ABORTED"
	CodeInvalidCard        = "INVALID_CARD"
	CodeInsufficientFunds  = "INSUFFICIENT_FUNDS"
	CodeCardExpired        = "CARD_EXPIRED"
	CodeInvalidPassword    = "INVALID_PASSWORD"
	CodeExceedDailyLimit   = "EXCEED_DAILY_LIMIT"
	CodeExceedMonthlyLimit = "EXCEED_MONTHLY_LIMIT"
	CodeCardNotSupported   = "CARD_NOT_SUPPORTED"
	CodeBankServerError    = "BANK_SERVER_ERROR"
	CodeBankTimeout        = "BANK_TIMEOUT"

	// CodeConfirmError is this system's own sentinel for a confirmation
	// call that failed without a provider code (transport error, undecodable
	// body). It is not issued by the provider.
	CodeConfirmError = "CONFIRM_ERROR"
)

// GenericFallback is returned for any code outside the known set.
const GenericFallback = "결제 중 오류가 발생했습니다."

var messages = map[string]string{
	CodePayProcessCanceled: "결제가 취소되었습니다.",
	CodePayProcessAborted:  "결제가 중단되었습니다.",
	CodeInvalidCard:        "유효하지 않은 카드입니다.",
	CodeInsufficientFunds:  "카드 잔액이 부족합니다.",
	CodeCardExpired:        "유효기간이 지난 카드입니다.",
	CodeInvalidPassword:    "비밀번호가 올바르지 않습니다.",
	CodeExceedDailyLimit:   "일일 결제 한도를 초과했습니다.",
	CodeExceedMonthlyLimit: "월 결제 한도를 초과했습니다.",
	CodeCardNotSupported:   "지원하지 않는 카드입니다.",
	CodeBankServerError:    "은행 서버에 오류가 발생했습니다.",
	CodeBankTimeout:        "은행 응답이 지연되고 있습니다. 잠시 후 다시 시도해주세요.",
	CodeConfirmError:       "결제 승인 중 오류가 발생했습니다.",
}

// Classify returns the localized message for a provider failure code.
// Codes outside the known set map to GenericFallback.
func Classify(code string) string {
	if msg, ok := messages[code]; ok {
		return msg
	}
	return GenericFallback
}

// Known reports whether the code is part of the documented code set.
func Known(code string) bool {
	_, ok := messages[code]
	return ok
}

// KnownCodes returns the documented code set. The returned slice is a copy.
func KnownCodes() []string {
	codes := make([]string, 0, len(messages))
	for code := range messages {
		codes = append(codes, code)
	}
	return codes
}
