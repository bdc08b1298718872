package ai

import (
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/dvloznov/moliya/internal/domain"
)

// DefaultModelName is the Gemini model used when none is configured.
const DefaultModelName = "gemini-2.5-flash"

// AdviceWindow is how many of the most recent transactions feed the advisor.
const AdviceWindow = 5

const resolverInstruction = `Siz "Moliya AI" shaxsiy yordamchisiz. Foydalanuvchi xabarlarini tahlil qilib JSON qaytaring.

DIQQAT QILISH KERAK BO'LGAN QOIDALAR:
1. Qarz turlari:
   - "Berdim" (masalan: "Aliyevga 100 ming berdim") -> intent: "debt", type: "Qarz Berdim".
   - "Oldim" (masalan: "Aliyevdan 100 ming oldim") -> intent: "debt", type: "Qarz Oldim".
2. Kategoriyalar: Xarajatlar uchun (Ovqat, Yo'l, Kommunal va h.k.), Daromadlar uchun (Oylik, Sovg'a va h.k.) aniqlang.
3. To'lov turi: Agar "Karta" yoki "Naqd" so'zi bo'lsa aniqlang. Yo'q bo'lsa, 'needsClarification' maydoniga 'paymentMethod' deb yozing.
4. Odamlar: Ismlarni aniqlang. Agar ism bo'lsa intent doim 'debt' bo'ladi. Mavjud odamlar ro'yxatidagi ismni o'sha yozilishda qaytaring.
5. Savollar: Agar foydalanuvchi balans yoki hisobot haqida so'rasa intent: "query".
6. Javob: 'message' maydonida foydalanuvchiga nima tushunilganini chiroyli yozing.

Return ONLY valid raw JSON. Do NOT wrap the response in code fences.

JSON formati:
{
  "intent": "transaction" | "debt" | "query" | "clarification",
  "amount": number,
  "type": "Xarajat" | "Daromad" | "Qarz Berdim" | "Qarz Oldim",
  "category": string,
  "paymentMethod": "Karta" | "Naqd" | null,
  "personName": string | null,
  "message": string,
  "needsClarification": "paymentMethod" | null
}`

const adviceInstruction = "Siz moliyachi yordamchisiz. O'zbek tilida 1 gaplik maslahat bering."

func buildResolvePrompt(req ResolveRequest) string {
	return fmt.Sprintf("Foydalanuvchi: %q. Mavjud odamlar: %s", req.Text, strings.Join(req.KnownPeople, ", "))
}

func buildAdvicePrompt(txs []domain.Transaction) string {
	parts := make([]string, 0, len(txs))
	for _, t := range txs {
		parts = append(parts, fmt.Sprintf("%s: %d", t.Kind, t.Amount))
	}
	return fmt.Sprintf("Tranzaksiyalar: %s. Qisqa maslahat.", strings.Join(parts, ", "))
}

func responseSchema() *genai.Schema {
	str := func() *genai.Schema { return &genai.Schema{Type: genai.TypeString} }
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"intent":             str(),
			"amount":             {Type: genai.TypeNumber},
			"type":               str(),
			"category":           str(),
			"paymentMethod":      str(),
			"personName":         str(),
			"message":            str(),
			"needsClarification": str(),
		},
		Required: []string{"intent", "message"},
	}
}

// Window returns the n most recent transactions. The ledger is ordered
// most-recent-first, so this is its head.
func Window(txs []domain.Transaction, n int) []domain.Transaction {
	if n <= 0 || len(txs) <= n {
		return txs
	}
	return txs[:n]
}
