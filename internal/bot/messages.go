package bot

// User-facing texts. Every failure path ends in one of these; raw error
// detail never leaves the process.
const (
	msgInternalError = "Извините, произошла внутренняя ошибка. Пожалуйста, попробуйте позже."

	msgWelcome           = "👋 Здравствуйте! Это бот диспетчерской службы. Для регистрации поделитесь номером телефона с помощью кнопки ниже."
	msgAlreadyRegistered = "Вы уже зарегистрированы. Используйте /help для списка команд."
	msgPleaseRegister    = "Пожалуйста, используйте /start для регистрации."
	msgPhoneUpdated      = "Номер телефона обновлён."
	msgAskFirstName      = "Спасибо! Введите ваше имя и отчество (например: Иван Петрович):"
	msgFirstNameRetry    = "Пожалуйста, введите имя и отчество через пробел (например: Иван Петрович):"
	msgAskLastName       = "Теперь введите вашу фамилию:"
	msgLastNameRetry     = "Пожалуйста, введите фамилию (минимум 2 символа):"
	msgChooseCarpark     = "Выберите вашу автоколонну:"
	msgRegistered        = "✅ Регистрация завершена, %s! Доступ к рейсам откроется после проверки диспетчером."

	msgTripConfirmed      = "✅ Вы подтвердили рейс %s."
	msgTripRejected       = "Отказ по рейсу %s принят."
	msgAskRejectionReason = "Укажите причину отказа:"
	msgResponseExists     = "Ответ по этому рейсу уже был получен."

	msgRouteRequiresReg = "Построение маршрута доступно после регистрации. Используйте /start."
	msgNoPoints         = "Точки маршрута пока не загружены."
	msgChooseOrigin     = "Выберите начальную точку маршрута:"
	msgChooseNext       = "Выбрано точек: %d. Выберите следующую точку или завершите маршрут:"
	msgRouteUseButtons  = "Вы строите маршрут. Продолжите выбор точек кнопками или нажмите «Отмена»."
	msgRouteReady       = "🗺 Ваш маршрут готов:"
	msgRouteCancelled   = "Построение маршрута отменено."

	msgAskRequiresVerified    = "Задать вопрос оператору можно после завершения регистрации и проверки диспетчером."
	msgTicketAlreadyOpen      = "У вас уже есть открытый вопрос. Дождитесь ответа оператора или закройте его командой /close."
	msgAskQuestion            = "Напишите ваш вопрос одним сообщением:"
	msgQuestionSent           = "Вопрос передан оператору. Ответ придёт в этот чат."
	msgFollowUpSent           = "Сообщение передано оператору."
	msgRelayFailed            = "Не удалось передать сообщение оператору. Попробуйте позже."
	msgNoOpenTicket           = "У вас нет открытых вопросов."
	msgTicketClosed           = "Вопрос закрыт. Спасибо!"
	msgTicketClosedByOperator = "Ваш вопрос закрыт оператором."
	msgOperatorUnauthorized   = "⛔ Отвечать на вопросы могут только проверенные операторы."
	msgUserRelayFailed        = "⚠️ Не удалось доставить ответ пользователю."
	msgClosedByUserNotice     = "Пользователь закрыл этот вопрос."

	msgUnknownCommand = "Неизвестная команда. Используйте /help для списка команд."
	msgFallback       = "Я вас не понял. Используйте /help для списка команд."

	msgHelp = `Доступные команды:
/start — регистрация
/route — построить маршрут по точкам
/ask — задать вопрос оператору
/close — закрыть свой вопрос
/status — ваши рейсы и статус
/help — эта справка`
)
