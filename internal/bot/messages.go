package bot

import (
	"fmt"

	"clinic-concierge/internal/phone"
)

// User-facing texts. Patients are Ukrainian-speaking; everything the bot
// says stays in Ukrainian, while logs stay in English.

const commandList = "🚪 /hvirtka - Відкрити хвіртку для пішого проходу\n" +
	"🏠 /vorota - Відкрити ворота для авто\n" +
	"📞 /call - Зателефонувати лікарю\n" +
	"🗺️ /map - Показати розташування косметології на мапі\n" +
	"📋 /scheme - Схема розташування косметології в ЖК Графський"

func welcomeAuthorized(firstName string) string {
	return fmt.Sprintf("🎉 Вітаємо, %s!\n\n"+
		"Ви авторизовані в системі і маєте доступ до всіх функцій.\n\n"+
		"🔓 Доступні дії:\n\n%s\n\n"+
		"💡 Підказка: для швидкого доступу до команд\n"+
		"   натисніть кнопку \"Меню\" ☰ зліва внизу", firstName, commandList)
}

func welcomeUnauthorized(firstName string) string {
	return fmt.Sprintf("👋 Вітаємо, %s!\n\n"+
		"❌ Ви не авторизовані в системі.\n\n"+
		"📱 Для авторизації поділіться своїм номером телефону.", firstName)
}

const (
	msgShareContact = "👇 Натисніть кнопку для авторизації:"
	msgShareButton  = "📱 Поділитися номером"

	msgContactAccepted = "✅ Авторизація успішна. Ви можете користуватись всіма можливостями бота.\n\n" +
		"🔓 Доступні дії:\n\n" + commandList

	msgContactDenied = "🚫 На жаль, Вас немає в нашій базі клієнтів. " +
		"Якщо ви вважаєте, що це помилка, або бажаєте стати нашим клієнтом — " +
		"будь ласка зверніться до лікаря."

	msgNotAuthorized = "❌ Доступ заборонено! Спочатку авторизуйтеся через /start"

	msgPickingKeys = "🔑 Підбираємо ключі…"

	msgRateLimited = "⏳ Забагато запитів. Зачекайте хвилину і спробуйте знову."

	msgAdminOnly = "❌ Ця команда доступна тільки адміністратору"
)

func dialFailed(supportPhone string) string {
	return fmt.Sprintf("❌ Сталася помилка, спробуйте, будь ласка, ще раз, "+
		"або зателефонуйте нам за номером %s", displayPhone(supportPhone))
}

func callDoctor(doctorPhone string) string {
	return fmt.Sprintf("📞 Щоб зателефонувати лікарю - наберіть - %s", displayPhone(doctorPhone))
}

func mapLocation(mapURL string) string {
	return fmt.Sprintf("🗺️ Карта локації:\n\n📍 Посилання на карту: %s\n\n"+
		"🚗 Виберіть зручний маршрут для прибуття.", mapURL)
}

func buildingScheme(schemeURL string) string {
	return fmt.Sprintf("🏗️ Схема будівлі:\n\n📋 Посилання на схему: %s\n\n"+
		"🏠 Оберіть потрібний вхід згідно схеми.", schemeURL)
}

func unauthorizedAttemptAlert(userID int64, username, firstName, rawPhone string) string {
	return fmt.Sprintf("⛔️ Неавторизований користувач %s @%s (%s) намагався авторизуватись.",
		firstName, username, rawPhone)
}

// displayPhone renders a normalized number the way it is printed on the
// clinic door: 073-310-31-10.
func displayPhone(raw string) string {
	n := phone.Normalize(raw)
	if len(n) != 10 {
		return raw
	}
	return fmt.Sprintf("%s-%s-%s-%s", n[0:3], n[3:6], n[6:8], n[8:10])
}
