package assistant

import (
	"strings"

	"github.com/nrashid7/infobase/pkg/llm"
)

const systemPrompt = `You are the INFOBASE assistant. You help people in Bangladesh understand government services such as passports, national ID cards, driving licenses, birth registration and trade licenses.

Rules:
- Only answer questions about Bangladesh government services and official procedures.
- Prefer the guide context when it is provided and do not contradict it.
- Never invent fees, document lists or processing times. If you are unsure, say so and point the user to the official website.
- Keep answers short and use numbered steps for procedures.`

// Messages builds the chat messages sent to the gateway for req.
func Messages(req AskRequest) []llm.Message {
	req = req.Normalize()

	var sys strings.Builder
	sys.WriteString(systemPrompt)
	sys.WriteString("\n\n")
	if req.Language == LanguageBangla {
		sys.WriteString("Answer in Bangla (বাংলা).")
	} else {
		sys.WriteString("Answer in English.")
	}
	if req.Context != "" {
		sys.WriteString("\n\nGuide context:\n")
		sys.WriteString(req.Context)
	}

	return []llm.Message{
		llm.NewTextMessage(llm.RoleSystem, sys.String()),
		llm.NewTextMessage(llm.RoleUser, req.Question),
	}
}
