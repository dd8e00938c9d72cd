package models

// WeightSettings is the singleton weight configuration of the weighted fallback.
type WeightSettings struct {
	HighBandWeight        int // ratio в [0.4, 0.8]
	MidBandWeight         int // ratio в [0.3, 0.4)
	LowBandWeight         int // все остальное, включая received == 0
	PartnersInvitedWeight int // в формуле выбора не используется
}

// DefaultWeightSettings - значения, которыми заполняется пустая таблица настроек.
// Соответствуют исходному заполнению колонок: ratio_40_80=3, ratio_30_40=2, ratio_below_30=1,
// которые читаются для полос в обратном порядке (см. db.GetWeightSettings).
func DefaultWeightSettings() WeightSettings {
	return WeightSettings{
		HighBandWeight:        1,
		MidBandWeight:         2,
		LowBandWeight:         3,
		PartnersInvitedWeight: 1,
	}
}

// MessageTemplate is an admin-managed override of a built-in message.
type MessageTemplate struct {
	Name     string
	Template string
}
