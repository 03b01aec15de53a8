package repair

import "github.com/raphaelgruber/rafeeq/internal/models"

// DefaultBalanceScore is used when a provider omits or garbles balanceScore.
const DefaultBalanceScore = 65

// UnknownQuoteSource attributes a generated quote that names no source.
const UnknownQuoteSource = "مجهول"

// MaxWrappedTextRunes caps plain-text provider output placed into a record.
const MaxWrappedTextRunes = 2000

// Default placeholders. Every field a caller can read has an entry here.
const (
	defaultAccomplishment  = "تم تسجيل يومك بنجاح"
	defaultEffortType      = "mental"
	defaultStressLevel     = "medium"
	defaultAnalysisText    = "لم يتمكن النظام من استخراج تحليل تفصيلي هذه المرة، لكن مجرد كتابتك عن يومك خطوة مهمة نحو فهم نفسك."
	defaultRootCause       = "لم يتم تحديد سبب جذري واضح من المصادر المتاحة"
	defaultSuggestedRemedy = "قسّم مهامك إلى خطوات صغيرة وابدأ بأسهلها لمدة 25 دقيقة."

	defaultQuoteText     = "لَا يُكَلِّفُ اللَّهُ نَفْسًا إِلَّا وُسْعَهَا"
	defaultQuoteSource   = "سورة البقرة"
	defaultQuoteCategory = "religious"

	defaultSupportMessage   = "أنت تبذل مجهوداً يستحق التقدير. خذ نفساً عميقاً وامنح نفسك استراحة قصيرة."
	defaultSupportTechnique = "التنفس الصندوقي (4-4-4-4)"

	defaultVerse       = "فَإِنَّ مَعَ الْعُسْرِ يُسْرًا"
	defaultSurah       = "الشرح"
	defaultExplanation = "كل صعوبة يتبعها تيسير، فاستمر في السعي بهدوء."

	defaultPlanTime   = "مرن"
	defaultPlanMethod = "تركيز عميق"
	defaultPlanType   = "study"

	defaultEvidenceStrength = "limited"
	defaultConnectionType   = "correlational"

	defaultDifficulty       = "medium"
	defaultLessonReflection = "راجع النقاط التي توقفت عندها في الدرس واكتبها بأسلوبك."
	defaultLessonInsights   = "الاسترجاع النشط والتكرار المتباعد يثبتان المعلومة أكثر من إعادة القراءة."
)

var (
	effortTypes      = []string{"mental", "emotional", "physical"}
	stressLevels     = []string{"low", "medium", "high"}
	quoteCategories  = []string{"religious", "scientific", "philosophical", "wisdom"}
	planTypes        = []string{"study", "break", "sleep", "prayer"}
	evidenceLevels   = []string{"strong", "medium", "limited"}
	connectionTypes  = []string{"causal", "correlational"}
	difficultyLevels = []string{"easy", "medium", "hard"}
)

// placeholderPlan is used whenever a record would otherwise have no plan.
func placeholderPlan() []models.PlanItem {
	return []models.PlanItem{{
		Time:   "08:00 ص",
		Task:   "مراجعة أولية لأهم مادة في جدول الغد",
		Method: "Pomodoro",
		Type:   "study",
	}}
}
