package usecase

import (
	"fmt"
	"strings"
	"time"
)

// Context tags select the assistant persona. Unknown tags fall back to the
// general persona.
const (
	contextGeneral    = "general"
	contextStrategy   = "strategy"
	contextMechanical = "mechanical"
	contextSimulation = "simulation"
)

// buildSystemPrompt assembles the persona, the current-season context, and
// the topic guidance for the given context tag. The enrichment block is NOT
// part of this prompt; provider adapters append it separately so an empty
// block can be omitted cleanly.
func buildSystemPrompt(contextTag, language string, now time.Time) string {
	year := now.Year()
	english := strings.EqualFold(language, "en")

	var b strings.Builder
	if english {
		b.WriteString("You are an expert FRC (FIRST Robotics Competition) AI assistant.\n")
		fmt.Fprintf(&b, "Current season: %d. Current date: %s.\n", year, now.Format("2006-01-02"))
		b.WriteString("You use live data from The Blue Alliance and WPILib documentation; ")
		b.WriteString("prefer retrieved context over your training data when they disagree.\n\n")
		b.WriteString("Rules:\n")
		b.WriteString("1. Answer only the asked question; stay on topic.\n")
		b.WriteString("2. Be clear and concise, no unnecessary repetition.\n")
		b.WriteString("3. Provide code examples when useful.\n")
		b.WriteString("4. When awards or events are asked, use the retrieved live data.\n\n")
		b.WriteString(topicGuidanceEN(contextTag))
		b.WriteString("\nRespond in English.")
	} else {
		b.WriteString("FRC (FIRST Robotics Competition) konusunda uzman bir AI asistanısın.\n")
		fmt.Fprintf(&b, "Güncel sezon: %d. Bugünün tarihi: %s.\n", year, now.Format("2006-01-02"))
		b.WriteString("The Blue Alliance ve WPILib dokümantasyonundan canlı veri kullanırsın; ")
		b.WriteString("çelişki olursa eğitim verisi yerine getirilen bağlamı tercih et.\n\n")
		b.WriteString("Kurallar:\n")
		b.WriteString("1. Sadece sorulan soruyu cevapla; konu dışına çıkma.\n")
		b.WriteString("2. Net ve anlaşılır ol, gereksiz tekrar yapma.\n")
		b.WriteString("3. Gerekirse kod örnekleri ver.\n")
		b.WriteString("4. Ödül veya etkinlik sorulursa getirilen canlı veriyi kullan.\n\n")
		b.WriteString(topicGuidanceTR(contextTag))
		b.WriteString("\nTürkçe cevap ver.")
	}
	return b.String()
}

func topicGuidanceEN(contextTag string) string {
	switch contextTag {
	case contextStrategy:
		return "Focus: competition strategy, game analysis, scouting, alliance selection, score optimization, defense and offense tactics.\n"
	case contextMechanical:
		return "Focus: robot design, drive systems, motor selection (NEO, Falcon), pneumatics, power transmission, CAD and material choice.\n"
	case contextSimulation:
		return "Focus: WPILib simulation, PathPlanner, sensor simulation, testing tools, Shuffleboard and Glass.\n"
	default:
		return "Topics: FRC teams, competitions, robot programming (WPILib), mechanics, electronics, strategy.\n"
	}
}

func topicGuidanceTR(contextTag string) string {
	switch contextTag {
	case contextStrategy:
		return "Odak: yarışma stratejisi, oyun analizi, scouting, alliance seçimi, puan optimizasyonu, savunma ve atak taktikleri.\n"
	case contextMechanical:
		return "Odak: robot tasarımı, sürüş sistemleri, motor seçimi (NEO, Falcon), pnömatik, güç aktarımı, CAD ve malzeme seçimi.\n"
	case contextSimulation:
		return "Odak: WPILib simulation, PathPlanner, sensör simülasyonu, test araçları, Shuffleboard ve Glass.\n"
	default:
		return "Konuların: FRC takımları, yarışmalar, robot programlama (WPILib), mekanik, elektronik, strateji.\n"
	}
}
