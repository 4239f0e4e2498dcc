package kb

import "strings"

// langTemplate is one language's prompt skeleton: instructions plus a
// placeholder for the assembled context block and the query.
type langTemplate struct {
	displayName string
	template    string
}

// langTemplates carries seven supported languages; English is the fallback
// for anything else.
var langTemplates = map[string]langTemplate{
	"en": {
		displayName: "English",
		template: "You are a helpful assistant. Respond in {preferred_language}. Answer the " +
			"question using only the context below. If the context does not contain the " +
			"answer, say you don't know.\n\nConversation so far:\n{conversation_history}" +
			"\n\n{context}\n\nQuestion: {query}\nAnswer:",
	},
	"zh-HK": {
		displayName: "繁體中文（香港）",
		template: "你是一個樂於助人的助手。請用{preferred_language}回應。請只根據以下背景資料回答問題。" +
			"如果背景資料中沒有答案，請直接說不知道。\n\n對話背景：\n{conversation_history}" +
			"\n\n{context}\n\n問題：{query}\n答案：",
	},
	"zh-CN": {
		displayName: "简体中文",
		template: "你是一个乐于助人的助手。请用{preferred_language}回应。请仅根据以下背景信息回答问题。" +
			"如果背景信息中没有答案，请直接说不知道。\n\n对话背景：\n{conversation_history}" +
			"\n\n{context}\n\n问题：{query}\n答案：",
	},
	"ja": {
		displayName: "日本語",
		template: "あなたは親切なアシスタントです。{preferred_language}で回答してください。" +
			"以下のコンテキストのみを使用して質問に答えてください。コンテキストに答えが含まれていない場合は、" +
			"わからないと答えてください。\n\n会話の背景：\n{conversation_history}" +
			"\n\n{context}\n\n質問：{query}\n回答：",
	},
	"ko": {
		displayName: "한국어",
		template: "당신은 유용한 도우미입니다. {preferred_language}로 답변하세요. 아래 문맥만을 " +
			"사용하여 질문에 답하세요. 문맥에 답이 없으면 모른다고 말하세요.\n\n대화 배경:\n" +
			"{conversation_history}\n\n{context}\n\n질문: {query}\n답변:",
	},
	"th-TH": {
		displayName: "ไทย",
		template: "คุณเป็นผู้ช่วยที่เป็นประโยชน์ โปรดตอบเป็น{preferred_language} โปรดตอบคำถามโดยใช้" +
			"เฉพาะบริบทด้านล่างเท่านั้น หากบริบทไม่มีคำตอบ โปรดบอกว่าคุณไม่ทราบ\n\nบริบทการสนทนา:\n" +
			"{conversation_history}\n\n{context}\n\nคำถาม: {query}\nคำตอบ:",
	},
	"vi-VN": {
		displayName: "Tiếng Việt",
		template: "Bạn là một trợ lý hữu ích. Hãy trả lời bằng {preferred_language}. Hãy trả lời " +
			"câu hỏi chỉ dựa trên ngữ cảnh bên dưới. Nếu ngữ cảnh không chứa câu trả lời, hãy " +
			"nói rằng bạn không biết.\n\nBối cảnh cuộc trò chuyện:\n{conversation_history}" +
			"\n\n{context}\n\nCâu hỏi: {query}\nTrả lời:",
	},
}

const defaultLang = "en"

// resolveLang falls back to English for anything the catalogue does not
// carry rather than rejecting the request.
func resolveLang(preferred string) (code string, t langTemplate) {
	if tpl, ok := langTemplates[preferred]; ok {
		return preferred, tpl
	}
	return defaultLang, langTemplates[defaultLang]
}

// buildPrompt fills a language template with the assembled context block,
// the conversation history so far, the resolved language's display name,
// and the user's query text.
func buildPrompt(preferredLang, conversationHistory, context, query string) string {
	_, tpl := resolveLang(preferredLang)
	p := strings.ReplaceAll(tpl.template, "{preferred_language}", tpl.displayName)
	p = strings.ReplaceAll(p, "{conversation_history}", conversationHistory)
	p = strings.ReplaceAll(p, "{context}", context)
	p = strings.ReplaceAll(p, "{query}", query)
	return p
}
