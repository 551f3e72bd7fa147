package nameparse

// keyword maps a lowercase token found in a listing name to its label.
// Tables are scanned in declaration order and the first hit wins, so the
// order below is part of the behaviour.
type keyword struct {
	token string
	label string
}

var fuelKeywords = []keyword{
	{"diesel", "Diesel"},
	{"petrol", "Petrol"},
	{"cng", "CNG"},
	{"lpg", "LPG"},
	{"hybrid", "Hybrid"},
	{"electric", "Electric"},
	{"ev", "Electric"},
}

var bodyKeywords = []keyword{
	{"suv", "SUV"},
	{"hatchback", "Hatchback"},
	{"hatch", "Hatchback"},
	{"sedan", "Sedan"},
	{"muv", "MUV"},
	{"mpv", "MPV"},
	{"van", "Van"},
	{"coupe", "Coupe"},
	{"convertible", "Convertible"},
	{"wagon", "Wagon"},
	{"estate", "Estate"},
	{"crossover", "Crossover"},
	// model names that only ship as SUVs
	{"ecosport", "SUV"},
	{"duster", "SUV"},
	{"creta", "SUV"},
	{"xuv", "SUV"},
}

var transmissionKeywords = []keyword{
	{"amt", "AMT"},
	{"automatic", "Automatic"},
	{"auto", "Automatic"},
	{"at", "AT"},
	{"mt", "MT"},
	{"dsg", "DSG"},
	{"cvt", "CVT"},
	{"manual", "Manual"},
}

var sportKeywords = []string{
	"sport", "sportz", "gt", "gti", "rs", "amg", "m sport", "n line", "r-line",
}

var trimKeywords = []string{
	"lxi", "vxi", "zxi", "ldi", "vdi", "zdi",
	"era", "magna", "asta", "sportz", "trend", "ambiente",
	"titanium", "highline", "comfortline", "style", "active",
}

var driveCodes = []string{"2wd", "4wd", "4x4", "4x2"}

// technicalWords are dropped from the model string. Brand-specific body
// aliases (ecosport, creta, ...) are deliberately absent: they are the model.
var technicalWords = buildTechnicalWords()

func buildTechnicalWords() map[string]struct{} {
	words := make(map[string]struct{})
	for _, tables := range [][]keyword{fuelKeywords, transmissionKeywords} {
		for _, kw := range tables {
			words[kw.token] = struct{}{}
		}
	}
	for _, w := range []string{
		"suv", "sedan", "hatchback", "hatch", "muv", "mpv", "van", "coupe",
		"convertible", "wagon", "estate", "crossover",
	} {
		words[w] = struct{}{}
	}
	for _, w := range trimKeywords {
		words[w] = struct{}{}
	}
	for _, w := range driveCodes {
		words[w] = struct{}{}
	}
	return words
}
