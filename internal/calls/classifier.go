package calls

import "fmt"

// Classification is the user-facing reading of a call outcome.
type Classification struct {
	Status  Status
	Message string

	// AlertOperator is set when the outcome indicates a device or line
	// misconfiguration an operator must look at.
	AlertOperator bool
}

// Classifier maps a provider disposition to a Classification. It is a pure
// total function of (disposition, duration, action); SupportPhone only
// parameterizes the message texts.
type Classifier struct {
	SupportPhone string
}

// Classify derives (status, message) from how the call ended.
//
// A callback call to an actuator is not a conversation: the device sees the
// incoming ring and drops it after firing. "cancel" with a non-zero duration
// (the line rang) is therefore the expected success signal for this hardware.
func (c Classifier) Classify(disposition string, duration int, action ActionType) Classification {
	name := action.Name()

	switch {
	case disposition == "cancel" && duration > 0:
		return Classification{
			Status:  StatusSuccess,
			Message: fmt.Sprintf("✅ %s відчинено!", capitalize(name)),
		}
	case disposition == "busy":
		return Classification{
			Status:  StatusBusy,
			Message: fmt.Sprintf("❌ Номер %s зайнятий. Спробуйте ще раз через хвилину.", name),
		}
	case disposition == "no-answer" || disposition == "noanswer" || (disposition == "cancel" && duration == 0):
		return Classification{
			Status: StatusNoAnswer,
			Message: fmt.Sprintf(
				"❌ Номер %s не відповідає. Можливо проблеми зв'язку.\n\nСпробуйте ще раз або зателефонуйте: %s",
				name, c.supportLink(),
			),
		}
	case disposition == "answered" && duration > 0:
		return Classification{
			Status: StatusMisconfigured,
			Message: fmt.Sprintf(
				"⚠️ Дзвінок для відкриття %s було прийнято.\nМожливо, система не налаштована правильно.\n\nЗверніться до підтримки: %s",
				name, c.supportLink(),
			),
			AlertOperator: true,
		}
	default:
		return Classification{
			Status: StatusFailed,
			Message: fmt.Sprintf(
				"❌ Не вдалося відкрити %s.\nСтатус: %s\nТривалість: %ds\n\nСпробуйте ще раз або зателефонуйте: %s",
				name, disposition, duration, c.supportLink(),
			),
		}
	}
}

func (c Classifier) supportLink() string {
	return fmt.Sprintf(`<a href="tel:%s">%s</a>`, c.SupportPhone, c.SupportPhone)
}

func capitalize(s string) string {
	// The two actuator names are Cyrillic; uppercase the first rune.
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	switch r[0] {
	case 'х':
		r[0] = 'Х'
	case 'в':
		r[0] = 'В'
	}
	return string(r)
}
