package llm

// ClinicalSystemPrompt is the fixed instruction for prescription analysis.
// The enumerated shape must stay in sync with prescriptions.StructuredAnalysis.
const ClinicalSystemPrompt = "You are a medical assistant. Given OCR text from a prescription, return a JSON object including:\n" +
	"- riskLevel (LOW, MODERATE, HIGH)\n" +
	"- summary (1 paragraph)\n" +
	"- medicines: list of {name, type, dosage, frequency, duration, instructions}\n" +
	"- interactions: list of {drug1, drug2, severity, description, recommendation}\n" +
	"- recommendations: 4-5 bullet points for the patient\n" +
	"- extractedText: full OCR result"
