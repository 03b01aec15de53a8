// Package llm implements the generative provider adapters.
package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/raphaelgruber/rafeeq/internal/models"
	"github.com/raphaelgruber/rafeeq/internal/provider"
	"github.com/raphaelgruber/rafeeq/internal/repair"
)

// systemInstruction frames the primary, search-grounded model.
const systemInstruction = `أنت "رفيق"، نظام تحليلي ومرشد واعٍ لطلاب المرحلة الثانوية في مصر.
حلل مدخلات الطالب بعمق، وابحث في الويب عن أسباب مشكلاته وحلولها، وقدم تقريراً متكاملاً.

استخدم أداة البحث دائماً عندما يذكر الطالب مشكلة (توتر، نسيان، أرق، تسويف) وللعثور على رسالة تحفيزية تناسب حالته.
الروابط يجب أن تكون حقيقية ومأخوذة من نتائج البحث. لا تؤلف روابط.
راعِ المرحلة الدراسية والمنهج المصري عند وضع خطة الغد، وقدم دعماً قرآنياً مختاراً بعناية.

أخرج JSON فقط بالهيكل التالي:
` + recordSchema

// simpleSystem frames the backup and third-party models.
const simpleSystem = `أنت "رفيق"، مساعد ذكي للطالب العربي. حلل النص بدقة، وادمج الجدول الدراسي والحالة النفسية، وقدم نصيحة من القرآن. أخرج النتيجة بصيغة JSON فقط.`

const recordSchema = `{
  "summary": {"accomplishment": "string", "effortType": "mental|emotional|physical", "stressLevel": "low|medium|high", "analysisText": "string"},
  "webAnalysis": {"rootCause": "string", "suggestedRemedy": "string", "sources": [{"title": "string", "url": "string", "snippet": "string"}]},
  "motivationalMessage": {"text": "string", "source": "string", "category": "religious|scientific|philosophical|wisdom"},
  "researchConnections": [{"point": "string", "source": "string", "evidenceStrength": "strong|medium|limited", "type": "causal|correlational", "relevance": "string"}],
  "tomorrowPlan": [{"time": "string", "task": "string", "method": "string", "type": "study|break|sleep|prayer"}],
  "recommendedMethods": [{"subject": "string", "methodName": "string", "details": "string", "tools": ["string"]}],
  "psychologicalSupport": {"message": "string", "technique": "string"},
  "quranicLink": {"verse": "string", "surah": "string", "behavioralExplanation": "string"},
  "lessonIntelligence": {"difficulty": "easy|medium|hard", "reflectionText": "string", "researchInsights": "string"},
  "balanceScore": 0
}`

// AnalysisPrompt builds the full user prompt for the primary model.
func AnalysisPrompt(q provider.Query) string {
	var b strings.Builder
	b.WriteString("بيانات المستخدم:\n")
	fmt.Fprintf(&b, "- المرحلة الدراسية: %s (المنهج المصري)\n", orDash(q.GradeLevel))
	fmt.Fprintf(&b, "- ملخص اليوم: %q\n", q.Reflection)
	fmt.Fprintf(&b, "- جدول الأسبوع المعتاد: %s\n", scheduleJSON(q.Schedule))
	fmt.Fprintf(&b, "- اليوم التالي هو: %s\n", orDash(q.NextDay))
	if q.Lesson != nil {
		fmt.Fprintf(&b, "- الدرس: %s / %s، تم الحل: %s، عدد الساعات: %.1f\n",
			q.Lesson.Subject, q.Lesson.Lesson, yesNo(q.Lesson.Solved), q.Lesson.Hours)
	}
	if q.InterestContext != "" {
		b.WriteString("\n")
		b.WriteString(q.InterestContext)
		b.WriteString("\n")
	}
	b.WriteString("\n1. ابحث في الويب عن مشاكل المستخدم وحلولها، وتأكد أن الروابط صحيحة.\n")
	b.WriteString("2. ابحث عن اقتباس تحفيزي مميز يناسب حالته.\n")
	fmt.Fprintf(&b, "3. قدم خطة للغد تراعي مواد %s ومواد يوم %s في الجدول.\n", orDash(q.GradeLevel), orDash(q.NextDay))
	if q.Lesson != nil {
		b.WriteString("4. أضف lessonIntelligence لتقييم صعوبة الدرس.\n")
	}
	b.WriteString("\nتذكير: أخرج فقط JSON صالح.")
	return b.String()
}

// SimplePrompt builds the reduced prompt used by fallback models.
func SimplePrompt(q provider.Query) string {
	var b strings.Builder
	fmt.Fprintf(&b, "حلل يوم الطالب: %q\n", q.Reflection)
	if q.GradeLevel != "" {
		fmt.Fprintf(&b, "المرحلة: %s\n", q.GradeLevel)
	}
	if len(q.Schedule) > 0 && q.NextDay != "" {
		fmt.Fprintf(&b, "مواد الغد (%s): %s\n", q.NextDay, strings.Join(q.Schedule[q.NextDay], "، "))
	}
	if q.InterestContext != "" {
		b.WriteString(q.InterestContext)
		b.WriteString("\n")
	}
	b.WriteString("أعد كائن JSON بالحقول التالية:\n")
	b.WriteString(recordSchema)
	return b.String()
}

// InspirationPrompt asks for a single motivational quote.
func InspirationPrompt(interestContext string) string {
	p := `أعطني اقتباساً تحفيزياً فريداً لطالب ثانوي. أعد JSON فقط: {"text": "string", "source": "string", "category": "religious|scientific|philosophical|wisdom"}`
	if interestContext != "" {
		p += "\n" + interestContext
	}
	return p
}

// ParseQuote decodes a quote response.
func ParseQuote(body string) (models.MotivationalMessage, error) {
	var msg models.MotivationalMessage
	s := repair.StripCodeFences(body)
	if start, end := strings.Index(s, "{"), strings.LastIndex(s, "}"); start >= 0 && end > start {
		s = s[start : end+1]
	}
	if err := json.Unmarshal([]byte(s), &msg); err != nil {
		return msg, fmt.Errorf("%w: %v", provider.ErrMalformed, err)
	}
	msg.Text = strings.TrimSpace(msg.Text)
	if msg.Text == "" {
		return msg, fmt.Errorf("%w: quote text missing", provider.ErrMalformed)
	}
	switch msg.Category {
	case "religious", "scientific", "philosophical", "wisdom":
	default:
		msg.Category = "wisdom"
	}
	if msg.Source == "" {
		msg.Source = repair.UnknownQuoteSource
	}
	return msg, nil
}

// parseRecord turns model text into a repaired record tagged as AI output.
func parseRecord(body string) (models.AnalysisRecord, error) {
	rec, err := repair.ParseJSON(body)
	if err != nil {
		return models.AnalysisRecord{}, fmt.Errorf("%w: %w", provider.ErrMalformed, err)
	}
	rec.Source = models.SourceAI
	return rec, nil
}

func scheduleJSON(s models.WeeklySchedule) string {
	if len(s) == 0 {
		return "{}"
	}
	data, err := json.Marshal(s)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "غير محدد"
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "نعم"
	}
	return "لا"
}
