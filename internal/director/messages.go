package director

import "github.com/bobarin/director/internal/models"

type messageKey int

const (
	msgScriptQuota messageKey = iota
	msgScriptFailure
	msgSeoQuota
	msgSeoFailure
	msgImageQuota
	msgImageFailure
)

var messages = map[models.Language]map[messageKey]string{
	models.LanguageEnglish: {
		msgScriptQuota:   QuotaExhaustedPrefix + ": You exceeded your current quota (Rate Limit). Please wait a minute or upgrade your API key.",
		msgScriptFailure: "Server error: ",
		msgSeoQuota:      QuotaExhaustedPrefix + ": SEO quota exceeded. Please try again later.",
		msgSeoFailure:    "SEO error: ",
		msgImageQuota:    QuotaExhaustedPrefix + ": Image quota exceeded. Please wait a minute before trying again.",
		msgImageFailure:  "Image error: ",
	},
	models.LanguageVietnamese: {
		msgScriptQuota:   QuotaExhaustedPrefix + ": Bạn đã hết lượt sử dụng miễn phí (Rate Limit). Vui lòng đợi 1 phút hoặc nâng cấp API key.",
		msgScriptFailure: "Lỗi máy chủ: ",
		msgSeoQuota:      QuotaExhaustedPrefix + ": Hết lượt sử dụng SEO. Vui lòng thử lại sau.",
		msgSeoFailure:    "Lỗi SEO: ",
		msgImageQuota:    QuotaExhaustedPrefix + ": Hết lượt tạo ảnh. Vui lòng đợi 1 phút rồi thử lại.",
		msgImageFailure:  "Lỗi tạo ảnh: ",
	},
}

func message(lang models.Language, key messageKey) string {
	if table, ok := messages[lang]; ok {
		return table[key]
	}
	return messages[models.LanguageEnglish][key]
}

// wrapFailure turns a raw failure into a localized GenerationError. Quota failures get
// the quota message; everything else gets the generic prefix followed by the cause.
func wrapFailure(op string, lang models.Language, err error, quotaKey, failureKey messageKey) *GenerationError {
	kind := classify(err)
	msg := message(lang, quotaKey)
	if kind != KindQuotaExceeded {
		msg = message(lang, failureKey) + err.Error()
	}
	return &GenerationError{Kind: kind, Op: op, Message: msg, Err: err}
}
