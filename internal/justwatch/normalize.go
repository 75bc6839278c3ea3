package justwatch

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/streamatlas/streamatlas-backend/pkg/enums"
)

// titleNode is the raw GraphQL node shape. Everything beyond the object id is
// optional; normalization tolerates whatever the feed leaves out.
type titleNode struct {
	ID         string `json:"id"`
	ObjectID   int64  `json:"objectId"`
	ObjectType string `json:"objectType"`
	Content    struct {
		Title               string  `json:"title"`
		OriginalReleaseYear int     `json:"originalReleaseYear"`
		OriginalReleaseDate string  `json:"originalReleaseDate"`
		ShortDescription    string  `json:"shortDescription"`
		PosterURL           string  `json:"posterUrl"`
		Backdrops           []struct {
			BackdropURL string `json:"backdropUrl"`
		} `json:"backdrops"`
		ExternalIDs struct {
			IMDbID string `json:"imdbId"`
			TMDBID string `json:"tmdbId"`
		} `json:"externalIds"`
		Genres []struct {
			ShortName   string `json:"shortName"`
			Translation string `json:"translation"`
		} `json:"genres"`
	} `json:"content"`
	Offers []RawOffer `json:"offers"`
}

// RawOffer is the provider's offer wire shape, kept raw on Title so callers
// decide when to normalize via ExtractOffers.
type RawOffer struct {
	MonetizationType string   `json:"monetizationType"`
	PresentationType string   `json:"presentationType"`
	RetailPrice      *float64 `json:"retailPrice"`
	Currency         string   `json:"currency"`
	Package          struct {
		ID        string `json:"id"`
		PackageID int64  `json:"packageId"`
		ClearName string `json:"clearName"`
	} `json:"package"`
	StandardWebURL string `json:"standardWebURL"`
}

// Title is one feed entry flattened out of the GraphQL edge shape.
type Title struct {
	ID               string
	ObjectType       string
	Title            string
	OriginalTitle    string
	ReleaseYear      int
	ReleaseDate      string
	ShortDescription string
	Poster           string
	Backdrops        []string
	IMDbID           string
	TMDBID           string
	Genres           []GenreTag
	Offers           []RawOffer
}

// GenreTag is the provider's lightweight genre reference.
type GenreTag struct {
	ShortName   string
	Translation string
}

// Movie is the provider-neutral shape handed to the ingestion layer.
type Movie struct {
	JustWatchID   string
	Title         string
	OriginalTitle string
	ReleaseYear   *int
	Overview      *string
	PosterPath    *string
	BackdropPath  *string
	TMDBID        *int64
	IMDbID        *string
}

// Offer is one normalized availability offer attached to a title.
type Offer struct {
	ProviderID       string
	ProviderName     string
	MonetizationType enums.MonetizationType
	Quality          enums.Quality
	URL              *string
	PriceAmount      *decimal.Decimal
	PriceCurrency    *string
}

// GenreDescriptor carries the provider's genre naming for find-or-create.
type GenreDescriptor struct {
	Name string
	Slug string
}

var posterIDPattern = regexp.MustCompile(`/poster/(\d+)`)

func normalizeNode(node titleNode) Title {
	id := node.ID
	if node.ObjectID != 0 {
		id = strconv.FormatInt(node.ObjectID, 10)
	}

	backdrops := make([]string, 0, len(node.Content.Backdrops))
	for _, b := range node.Content.Backdrops {
		if b.BackdropURL != "" {
			backdrops = append(backdrops, b.BackdropURL)
		}
	}

	genres := make([]GenreTag, 0, len(node.Content.Genres))
	for _, g := range node.Content.Genres {
		genres = append(genres, GenreTag{ShortName: g.ShortName, Translation: g.Translation})
	}

	return Title{
		ID:               id,
		ObjectType:       node.ObjectType,
		Title:            node.Content.Title,
		OriginalTitle:    node.Content.Title,
		ReleaseYear:      node.Content.OriginalReleaseYear,
		ReleaseDate:      node.Content.OriginalReleaseDate,
		ShortDescription: node.Content.ShortDescription,
		Poster:           node.Content.PosterURL,
		Backdrops:        backdrops,
		IMDbID:           node.Content.ExternalIDs.IMDbID,
		TMDBID:           node.Content.ExternalIDs.TMDBID,
		Genres:           genres,
		Offers:           node.Offers,
	}
}

// NormalizeMovie maps a feed title onto the canonical movie shape. It is pure
// and total: missing optional fields become nil, never an error.
func NormalizeMovie(t Title) Movie {
	movie := Movie{
		JustWatchID:   t.ID,
		Title:         t.Title,
		OriginalTitle: t.OriginalTitle,
	}
	if movie.OriginalTitle == "" {
		movie.OriginalTitle = t.Title
	}

	if year := releaseYear(t); year != 0 {
		movie.ReleaseYear = &year
	}
	if t.ShortDescription != "" {
		overview := t.ShortDescription
		movie.Overview = &overview
	}
	if poster := NormalizePosterPath(t.Poster); poster != "" {
		movie.PosterPath = &poster
	}
	if len(t.Backdrops) > 0 {
		if backdrop := NormalizePosterPath(t.Backdrops[0]); backdrop != "" {
			movie.BackdropPath = &backdrop
		}
	}
	if t.TMDBID != "" {
		if tmdbID, err := strconv.ParseInt(t.TMDBID, 10, 64); err == nil {
			movie.TMDBID = &tmdbID
		}
	}
	if t.IMDbID != "" {
		imdbID := t.IMDbID
		movie.IMDbID = &imdbID
	}
	return movie
}

func releaseYear(t Title) int {
	if t.ReleaseYear != 0 {
		return t.ReleaseYear
	}
	if t.ReleaseDate == "" {
		return 0
	}
	parsed, err := time.Parse("2006-01-02", t.ReleaseDate)
	if err != nil {
		return 0
	}
	return parsed.Year()
}

// NormalizePosterPath collapses the provider's image references into either a
// full URL (kept as-is) or a stable local identifier derived from the poster id.
func NormalizePosterPath(poster string) string {
	if poster == "" {
		return ""
	}
	if strings.HasPrefix(poster, "http") {
		return poster
	}
	if strings.Contains(poster, "/poster/") {
		match := posterIDPattern.FindStringSubmatch(poster)
		if match == nil {
			return ""
		}
		return "/jw_poster_" + match[1]
	}
	return poster
}

// ExtractOffers flattens a title's raw offers into the canonical offer shape.
func ExtractOffers(t Title) []Offer {
	if len(t.Offers) == 0 {
		return nil
	}
	offers := make([]Offer, 0, len(t.Offers))
	for _, raw := range t.Offers {
		offer := Offer{
			ProviderID:       offerProviderID(raw),
			ProviderName:     raw.Package.ClearName,
			MonetizationType: MapMonetizationType(raw.MonetizationType),
			Quality:          enums.NormalizeQuality(normalizePresentationType(raw.PresentationType)),
		}
		if raw.StandardWebURL != "" {
			url := raw.StandardWebURL
			offer.URL = &url
		}
		if raw.RetailPrice != nil {
			price := decimal.NewFromFloat(*raw.RetailPrice)
			offer.PriceAmount = &price
			if raw.Currency != "" {
				currency := raw.Currency
				offer.PriceCurrency = &currency
			}
		}
		offers = append(offers, offer)
	}
	return offers
}

func offerProviderID(raw RawOffer) string {
	if raw.Package.PackageID != 0 {
		return strconv.FormatInt(raw.Package.PackageID, 10)
	}
	return raw.Package.ID
}

// HasOfferFromProvider reports whether the title carries at least one offer
// fulfilled by the given provider.
func HasOfferFromProvider(t Title, providerID string) bool {
	for _, raw := range t.Offers {
		if offerProviderID(raw) == providerID {
			return true
		}
	}
	return false
}

// MapMonetizationType maps the provider's offer vocabulary onto the canonical
// enum. Combined types collapse onto their subscription component; anything
// unrecognized defaults to flatrate, matching how the feed treats it.
func MapMonetizationType(value string) enums.MonetizationType {
	switch strings.ToUpper(value) {
	case "FLATRATE", "FLATRATE_AND_BUY":
		return enums.MonetizationFlatrate
	case "RENT":
		return enums.MonetizationRent
	case "BUY":
		return enums.MonetizationBuy
	case "ADS":
		return enums.MonetizationAds
	case "FREE":
		return enums.MonetizationFree
	default:
		return enums.MonetizationFlatrate
	}
}

func normalizePresentationType(value string) string {
	switch strings.ToUpper(value) {
	case "SD":
		return string(enums.QualitySD)
	case "HD":
		return string(enums.QualityHD)
	case "_4K", "4K":
		return string(enums.Quality4K)
	case "UHD":
		return string(enums.QualityUHD)
	default:
		return value
	}
}

// ExtractGenres maps a title's genre tags to descriptors for find-or-create.
func ExtractGenres(t Title) []GenreDescriptor {
	if len(t.Genres) == 0 {
		return nil
	}
	descriptors := make([]GenreDescriptor, 0, len(t.Genres))
	for _, g := range t.Genres {
		name := g.Translation
		if name == "" {
			name = g.ShortName
		}
		descriptors = append(descriptors, GenreDescriptor{Name: name, Slug: g.ShortName})
	}
	return descriptors
}
