// Package i18n holds the player-facing strings in English and Brazilian
// Portuguese.
package i18n

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys.
const (
	KeyTitle          = "ui.title"
	KeyTitleSpectator = "ui.title.spectator"
	KeyClose          = "ui.close"
	KeyCloseView      = "ui.close_view"

	KeyAvoidTitle    = "ui.avoid.title"
	KeyAvoidSubtitle = "ui.avoid.subtitle"
	KeyBlazeTitle    = "ui.blaze.title"
	KeyBlazeSubtitle = "ui.blaze.subtitle"
	KeyRiskTitle     = "ui.risk.title"
	KeyRiskSubtitle  = "ui.risk.subtitle"

	KeyScarLabel  = "ui.avoid.scar_label"
	KeyDeathLabel = "ui.blaze.death_label"
	KeyLifeLabel  = "ui.risk.life_label"

	KeyAvoidResultScar = "chat.avoid.result_scar"
	KeyAvoidMsgScar    = "chat.avoid.msg_scar"
	KeyAvoidResultSafe = "chat.avoid.result_safe"
	KeyAvoidMsgSafe    = "chat.avoid.msg_safe"
	KeyAvoidFlavor     = "chat.avoid.flavor"
	KeyAvoidNoActor    = "chat.avoid.no_actor"
	KeyRollLabel       = "chat.avoid.roll_label"
	KeyTotalLabel      = "chat.avoid.total_label"
	KeyThreshold       = "chat.avoid.threshold"

	KeyRiskHopeTitle     = "chat.risk.hope_title"
	KeyRiskHopeDesc      = "chat.risk.hope_desc"
	KeyRiskFearTitle     = "chat.risk.fear_title"
	KeyRiskFearDesc      = "chat.risk.fear_desc"
	KeyRiskCriticalTitle = "chat.risk.critical_title"
	KeyRiskCriticalDesc  = "chat.risk.critical_desc"
	KeyHopeDie           = "chat.risk.hope_die"
	KeyFearDie           = "chat.risk.fear_die"

	KeyBlazeResultTitle = "chat.blaze.title"

	KeySpeaker     = "chat.speaker"
	KeyRiskSpeaker = "chat.risk.speaker"

	KeyWarnNotPrivileged = "warn.not_privileged"
	KeyWarnNoPlayers     = "warn.no_players"
	KeyWarnInProgress    = "warn.in_progress"
	KeyInfoSent          = "info.sent"
)

var (
	english   = language.English
	brazilian = language.MustParse("pt-BR")

	supported = []language.Tag{english, brazilian}
	matcher   = language.NewMatcher(supported)
)

var messages = map[language.Tag]map[string]string{
	english: {
		KeyTitle:          "Choose Your Fate",
		KeyTitleSpectator: "Waiting for Player Choice...",
		KeyClose:          "Close",
		KeyCloseView:      "Close View",

		KeyAvoidTitle:    "Avoid Death",
		KeyAvoidSubtitle: "Fall unconscious and maybe gain a scar",
		KeyBlazeTitle:    "Blaze of Glory",
		KeyBlazeSubtitle: "One last critical action, then death",
		KeyRiskTitle:     "Risk It All",
		KeyRiskSubtitle:  "Roll your Duality Dice",

		KeyScarLabel:  "Scar",
		KeyDeathLabel: "Death",
		KeyLifeLabel:  "LIFE: %d%% | DEATH: %d%%",

		KeyAvoidResultScar: "Scarred",
		KeyAvoidMsgScar:    "You survive, but the experience leaves a scar.",
		KeyAvoidResultSafe: "Unscathed",
		KeyAvoidMsgSafe:    "You slip into unconsciousness without a lasting scar.",
		KeyAvoidFlavor:     "Avoid Death",
		KeyAvoidNoActor:    "No character is bound to this player. Rolled %d.",
		KeyRollLabel:       "Roll (d12)",
		KeyTotalLabel:      "TOTAL",
		KeyThreshold:       "(Level Threshold: %d)",

		KeyRiskHopeTitle:     "Hope Prevails",
		KeyRiskHopeDesc:      "You stay on your feet and clear what Hope allows.",
		KeyRiskFearTitle:     "Fear Wins",
		KeyRiskFearDesc:      "You cross through the veil of death.",
		KeyRiskCriticalTitle: "Critical Success",
		KeyRiskCriticalDesc:  "You return with all HP and Stress cleared.",
		KeyHopeDie:           "Hope: %d",
		KeyFearDie:           "Fear: %d",

		KeyBlazeResultTitle: "Blaze of Glory",

		KeySpeaker:     "Death Moves",
		KeyRiskSpeaker: "Risk It All",

		KeyWarnNotPrivileged: "Only the GM can trigger this.",
		KeyWarnNoPlayers:     "No players connected.",
		KeyWarnInProgress:    "A death move is already in progress.",
		KeyInfoSent:          "Death Moves sent to player.",
	},
	brazilian: {
		KeyTitle:          "Escolha Seu Destino",
		KeyTitleSpectator: "Aguardando a escolha do jogador...",
		KeyClose:          "Fechar",
		KeyCloseView:      "Fechar Visão",

		KeyAvoidTitle:    "Evitar a Morte",
		KeyAvoidSubtitle: "Desmaie e talvez ganhe uma cicatriz",
		KeyBlazeTitle:    "Explosão de Glória",
		KeyBlazeSubtitle: "Uma última ação crítica, depois a morte",
		KeyRiskTitle:     "Arriscar Tudo",
		KeyRiskSubtitle:  "Role seus Dados de Dualidade",

		KeyScarLabel:  "Cicatriz",
		KeyDeathLabel: "Morte",
		KeyLifeLabel:  "VIDA: %d%% | MORTE: %d%%",

		KeyAvoidResultScar: "Cicatriz",
		KeyAvoidMsgScar:    "Você sobrevive, mas a experiência deixa uma cicatriz.",
		KeyAvoidResultSafe: "Ileso",
		KeyAvoidMsgSafe:    "Você desmaia sem ganhar uma cicatriz.",
		KeyAvoidFlavor:     "Evitar a Morte",
		KeyAvoidNoActor:    "Nenhum personagem vinculado a este jogador. Resultado %d.",
		KeyRollLabel:       "Rolagem (d12)",
		KeyTotalLabel:      "TOTAL",
		KeyThreshold:       "(Limite de Nível: %d)",

		KeyRiskHopeTitle:     "A Esperança Prevalece",
		KeyRiskHopeDesc:      "Você continua de pé e se recupera conforme a Esperança.",
		KeyRiskFearTitle:     "O Medo Vence",
		KeyRiskFearDesc:      "Você atravessa o véu da morte.",
		KeyRiskCriticalTitle: "Sucesso Crítico",
		KeyRiskCriticalDesc:  "Você volta com todos os PV e Estresse recuperados.",
		KeyHopeDie:           "Esperança: %d",
		KeyFearDie:           "Medo: %d",

		KeyBlazeResultTitle: "Explosão de Glória",

		KeySpeaker:     "Movimentos de Morte",
		KeyRiskSpeaker: "Arriscar Tudo",

		KeyWarnNotPrivileged: "Apenas o Mestre pode fazer isso.",
		KeyWarnNoPlayers:     "Nenhum jogador conectado.",
		KeyWarnInProgress:    "Um movimento de morte já está em andamento.",
		KeyInfoSent:          "Movimentos de Morte enviados ao jogador.",
	},
}

var builder = mustBuild()

func mustBuild() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(english))
	for tag, entries := range messages {
		for key, msg := range entries {
			if err := b.SetString(tag, key, msg); err != nil {
				panic(err)
			}
		}
	}
	return b
}

// Match returns the supported tag closest to pref, falling back to English.
func Match(pref string) language.Tag {
	tag, err := language.Parse(pref)
	if err != nil {
		return english
	}
	_, idx, conf := matcher.Match(tag)
	if conf == language.No {
		return english
	}
	return supported[idx]
}

// Localizer renders messages for one language.
type Localizer struct {
	tag     language.Tag
	printer *message.Printer
}

// New returns a Localizer for the language preference pref.
func New(pref string) *Localizer {
	tag := Match(pref)
	return &Localizer{tag: tag, printer: message.NewPrinter(tag, message.Catalog(builder))}
}

// Tag reports the matched language.
func (l *Localizer) Tag() language.Tag { return l.tag }

// T formats the message for key. Unknown keys are returned as is.
func (l *Localizer) T(key string, args ...any) string {
	return l.printer.Sprintf(key, args...)
}
