package domain

// Fixed rule tables for each landing source. They are not configurable at runtime.

// BlobNormalization covers the bike catalogue: bike_id, manufacturer, price_eur.
func BlobNormalization() Normalization {
	return Normalization{
		Rules: []ColumnRule{
			{Source: "bike_id", Target: "bike_id", Kind: KindInteger, OnError: OnErrorZero},
			{Source: "manufacturer", Target: "manufacturer", Kind: KindString},
			{Source: "price_eur", Target: "price_eur", Kind: KindDecimalComma, OnError: OnErrorFail},
		},
	}
}

// RatesColumn is the CNB column holding the rate for one unit of currency.
func RatesColumn(currency string) string {
	return "1 " + currency
}

// RatesNormalization keeps Datum and the configured currency's rate as Rate.
// A dated row in the window without a rate for the currency fails the run.
func RatesNormalization(currency string, window DateRange) Normalization {
	return Normalization{
		Rules: []ColumnRule{
			DMYDateRule("Datum", "Datum"),
			{Source: RatesColumn(currency), Target: "Rate", Kind: KindDecimalComma, OnError: OnErrorFail},
		},
		Window:       &window,
		WindowColumn: "Datum",
	}
}

// Numeric weather columns on either side of preciptype, in destination order.
// sunrise and sunset sit between severerisk and moonphase.
var (
	weatherFloatsBeforeType = []string{
		"tempmax", "tempmin", "temp", "feelslikemax", "feelslikemin", "feelslike",
		"dew", "humidity", "precip", "precipprob", "precipcover",
	}
	weatherFloatsAfterType = []string{
		"snow", "snowdepth", "windgust", "windspeed", "winddir", "sealevelpressure",
		"cloudcover", "visibility", "solarradiation", "solarenergy", "uvindex", "severerisk",
	}
	weatherTimestampLayouts = []string{"2006-01-02T15:04:05", "2006-01-02 15:04:05", ISODateLayout}
)

// WeatherNormalization types the daily weather CSV and restricts it to the window.
func WeatherNormalization(window DateRange) Normalization {
	rules := []ColumnRule{
		{Source: "name", Target: "name", Kind: KindString},
		{Source: "datetime", Target: "datetime", Kind: KindTimestamp, OnError: OnErrorDrop, Layouts: weatherTimestampLayouts},
	}
	for _, c := range weatherFloatsBeforeType {
		rules = append(rules, weatherFloat(c))
	}
	rules = append(rules, ColumnRule{Source: "preciptype", Target: "preciptype", Kind: KindString})
	for _, c := range weatherFloatsAfterType {
		rules = append(rules, weatherFloat(c))
	}
	rules = append(rules,
		ColumnRule{Source: "sunrise", Target: "sunrise", Kind: KindTimestamp, OnError: OnErrorNull, Layouts: weatherTimestampLayouts},
		ColumnRule{Source: "sunset", Target: "sunset", Kind: KindTimestamp, OnError: OnErrorNull, Layouts: weatherTimestampLayouts},
		weatherFloat("moonphase"),
		ColumnRule{Source: "conditions", Target: "conditions", Kind: KindString},
		ColumnRule{Source: "description", Target: "description", Kind: KindString},
		ColumnRule{Source: "icon", Target: "icon", Kind: KindString},
		ColumnRule{Source: "stations", Target: "stations", Kind: KindString},
	)
	return Normalization{Rules: rules, Window: &window, WindowColumn: "datetime"}
}

func weatherFloat(name string) ColumnRule {
	return ColumnRule{Source: name, Target: name, Kind: KindFloat, OnError: OnErrorFail, Nullable: true}
}

// CompletionMessage is the payload published once a load has finished.
var CompletionMessage = []byte("Follow-up processing triggered")
