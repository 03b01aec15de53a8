package orchestrator

import (
	"fmt"
	"strings"

	"github.com/raphaelgruber/rafeeq/internal/models"
)

// OfflineNote is appended to every static analysis.
const OfflineNote = " (ملاحظة: النظام يعمل في وضع الأوفلاين حالياً)"

var (
	sadWords   = []string{"مخنوق", "تعبان", "حزين", "زهقان", "قلقان"}
	studyWords = []string{"مذاكرة", "المذاكرة", "ضغط", "امتحان", "الامتحان"}
)

// StaticMessage is the built-in motivational quote.
var StaticMessage = models.MotivationalMessage{
	Text:     "لَا يُكَلِّفُ اللَّهُ نَفْسًا إِلَّا وُسْعَهَا",
	Source:   "سورة البقرة",
	Category: "religious",
}

// Static builds the offline analysis from simple keyword rules.
// The result always passes repair.Validate.
func Static(reflection string) models.AnalysisRecord {
	sad := containsAny(reflection, sadWords)
	busy := containsAny(reflection, studyWords)

	effort, stress, need := "emotional", "medium", "تحتاج فيها للتنظيم"
	if busy {
		effort = "mental"
	}
	if sad {
		stress, need = "high", "تحتاج فيها للدعم النفسي"
	}

	text := fmt.Sprintf("بناءً على كلماتك، نلاحظ أنك تمر بفترة %s. بما أننا في وضع \"الأمان\"، نوصيك بالتركيز على التنفس بعمق والبدء بمهمة واحدة فقط من جدولك لمدة 15 دقيقة.", need)

	return models.AnalysisRecord{
		Source: models.SourceStatic,
		Summary: models.Summary{
			Accomplishment: "تم تفعيل نظام الدعم الطارئ المستقر",
			EffortType:     effort,
			StressLevel:    stress,
			AnalysisText:   text + OfflineNote,
		},
		WebAnalysis: models.WebAnalysis{
			RootCause:       "تم تحليل النص محلياً لضمان استمرارية الخدمة",
			SuggestedRemedy: "ابتعد عن المشتتات لمدة ساعة كاملة.",
			Sources:         []models.WebSource{},
		},
		MotivationalMessage: StaticMessage,
		ResearchConnections: []models.ResearchConnection{},
		RecommendedMethods:  []models.StudyMethod{},
		TomorrowPlan: []models.PlanItem{
			{Time: "08:00 ص", Task: "مراجعة أولية", Method: "Deep Work", Type: "study"},
			{Time: "10:00 ص", Task: "استراحة ذكية", Method: "Pomodoro", Type: "break"},
		},
		PsychologicalSupport: models.PsychologicalSupport{
			Message:   "أنت تقوم بعمل رائع بمجرد المحاولة. استمر.",
			Technique: "التنفس البطني",
		},
		QuranicLink: models.QuranicLink{
			Verse:                 "فَإِنَّ مَعَ الْعُسْرِ يُسْرًا",
			Surah:                 "الشرح",
			BehavioralExplanation: "كل ضيق هو بداية لفرج قريب، ثق بنفسك.",
		},
		BalanceScore: 55,
	}
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
