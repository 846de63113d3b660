package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Price is a decimal amount the API sends either as a JSON number or as a
// decimal string. It keeps the textual form; empty means null.
type Price string

func (p *Price) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*p = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = Price(s)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("price: %w", err)
		}
		*p = Price(n.String())
	}
	return nil
}

func (p Price) MarshalJSON() ([]byte, error) {
	if p == "" {
		return []byte("null"), nil
	}
	return json.Marshal(string(p))
}

// Float returns the amount as a float64, or false when it is null or invalid.
func (p Price) Float() (float64, bool) {
	if p == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(string(p), 64)
	return f, err == nil
}

// Page is the paginated envelope used by list endpoints.
type Page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

type Image struct {
	URL        string `json:"url"`
	AltText    string `json:"alt_text,omitempty"`
	Position   *int   `json:"position,omitempty"`
	Principale bool   `json:"principale,omitempty"`
	Slug       string `json:"slug,omitempty"`
}

type Category struct {
	ID       int64  `json:"id"`
	Nom      string `json:"nom"`
	Slug     string `json:"slug"`
	Parent   *int64 `json:"parent,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
	Position *int   `json:"position,omitempty"`
}

// Ref is the short {slug, nom} form of a related brand or category.
type Ref struct {
	ID   int64  `json:"id,omitempty"`
	Slug string `json:"slug,omitempty"`
	Nom  string `json:"nom,omitempty"`
}

type Brand struct {
	Slug string `json:"slug"`
	Nom  string `json:"nom"`
}

type Color struct {
	Slug    string `json:"slug"`
	Nom     string `json:"nom"`
	CodeHex string `json:"code_hex,omitempty"`
}

type AttributeOption struct {
	Slug   string `json:"slug"`
	Valeur string `json:"valeur"`
}

// AttributeOptions accepts both option objects and bare strings.
type AttributeOptions []AttributeOption

func (o *AttributeOptions) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(AttributeOptions, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			out = append(out, AttributeOption{Slug: s, Valeur: s})
			continue
		}
		var opt AttributeOption
		if err := json.Unmarshal(item, &opt); err != nil {
			return err
		}
		out = append(out, opt)
	}
	*o = out
	return nil
}

type Attribute struct {
	Code    string           `json:"code"`
	Libelle string           `json:"libelle"`
	Type    string           `json:"type"` // text, int, dec, bool or choice
	Options AttributeOptions `json:"options,omitempty"`
}

type StateOption struct {
	Value string `json:"value"`
	Label string `json:"label,omitempty"`
}

// Filters lists the facets available for a category.
type Filters struct {
	Brands            []Brand       `json:"brands,omitempty"`
	Colors            []Color       `json:"colors,omitempty"`
	States            []StateOption `json:"states,omitempty"`
	Attributes        []Attribute   `json:"attributes,omitempty"`
	AttributesProduct []Attribute   `json:"attributes_product,omitempty"`
	AttributesVariant []Attribute   `json:"attributes_variant,omitempty"`
}

type Product struct {
	ID                int64   `json:"id"`
	Nom               string  `json:"nom"`
	Slug              string  `json:"slug"`
	DescriptionCourte string  `json:"description_courte,omitempty"`
	PrixFrom          Price   `json:"prix_from,omitempty"`
	OldPriceFrom      Price   `json:"old_price_from,omitempty"`
	Marque            *Ref    `json:"marque,omitempty"`
	Categorie         *Ref    `json:"categorie,omitempty"`
	Images            []Image `json:"images,omitempty"`
	VariantsStock     []*int  `json:"variants_stock,omitempty"`
	PromoNow          bool    `json:"promo_now,omitempty"`
	Quantite          *int    `json:"quantite,omitempty"`
	StockTotal        *int    `json:"stock_total,omitempty"`
	PromoDebut        *string `json:"promo_debut,omitempty"`
	PromoFin          *string `json:"promo_fin,omitempty"`
}

type LatestProduct struct {
	ID        int64   `json:"id"`
	Slug      string  `json:"slug"`
	Name      string  `json:"name"`
	Brand     *Ref    `json:"brand,omitempty"`
	Image     *string `json:"image,omitempty"`
	Specs     string  `json:"specs,omitempty"`
	Price     Price   `json:"price,omitempty"`
	State     *string `json:"state,omitempty"`
	Category  *Ref    `json:"category,omitempty"`
	Categorie *Ref    `json:"categorie,omitempty"`
}

type MostDemandedProduct struct {
	ID    int64   `json:"id"`
	Slug  string  `json:"slug"`
	Nom   string  `json:"nom"`
	Image *string `json:"image,omitempty"`
	Price Price   `json:"price,omitempty"`
	Count int     `json:"count"`
}

type ClickResult struct {
	OK    bool `json:"ok"`
	Count int  `json:"count"`
}

type BlogHero struct {
	Title string `json:"title"`
	Slug  string `json:"slug"`
}

type BlogPost struct {
	ID      int64   `json:"id"`
	Slug    string  `json:"slug"`
	Title   string  `json:"title"`
	Excerpt string  `json:"excerpt"`
	Content string  `json:"content"`
	Image   *string `json:"image,omitempty"`
}

type BlogPosts struct {
	Top    []BlogPost `json:"top"`
	Bottom []BlogPost `json:"bottom"`
}

type Article struct {
	ID        int64   `json:"id"`
	Titre     string  `json:"titre"`
	Slug      string  `json:"slug"`
	Extrait   *string `json:"extrait"`
	Contenu   *string `json:"contenu"`
	Image     *string `json:"image"`
	PublieLe  *string `json:"publie_le,omitempty"`
	CreeLe    *string `json:"cree_le,omitempty"`
	ModifieLe *string `json:"modifie_le,omitempty"`
}

type LatestArticle struct {
	ID      int64   `json:"id"`
	Title   string  `json:"title"`
	Excerpt string  `json:"excerpt"`
	Image   *string `json:"image,omitempty"`
}

type NewArticle struct {
	Titre   string  `json:"titre,omitempty"`
	Extrait *string `json:"extrait,omitempty"`
	Contenu *string `json:"contenu,omitempty"`
	Image   *string `json:"image,omitempty"`
}

type ContactPayload struct {
	Nom       string `json:"nom"`
	Email     string `json:"email"`
	Telephone string `json:"telephone,omitempty"`
	Sujet     string `json:"sujet"`
	Message   string `json:"message"`
}

type ContactMessage struct {
	ID        int64  `json:"id"`
	Nom       string `json:"nom"`
	Email     string `json:"email"`
	Telephone string `json:"telephone,omitempty"`
	Sujet     string `json:"sujet"`
	Message   string `json:"message"`
	CreeLe    string `json:"cree_le"`
}

type AdminSearchItem struct {
	Type      string  `json:"type"` // product or article
	ID        int64   `json:"id"`
	Title     string  `json:"title"`
	Excerpt   string  `json:"excerpt,omitempty"`
	Image     *string `json:"image,omitempty"`
	URL       string  `json:"url"`
	CreatedAt *string `json:"created_at,omitempty"`
	UpdatedAt *string `json:"updated_at,omitempty"`
	Brand     *string `json:"brand,omitempty"`
	Category  *string `json:"category,omitempty"`
}

type DashboardStats struct {
	Users         int `json:"users"`
	ProductsStock int `json:"products_stock"` // sum of variant stock
	Products      int `json:"products"`
	Articles      int `json:"articles"`
	Messages      int `json:"messages"`
}

type UploadedImage struct {
	URL     string `json:"url"`
	AltText string `json:"alt_text,omitempty"`
}

type AttributeValue struct {
	Code    string `json:"code"`
	Type    string `json:"type"`
	Libelle string `json:"libelle,omitempty"`
	Unite   string `json:"unite,omitempty"`
	Value   string `json:"value"`
}

// ProductPayload creates a product together with its first variant.
type ProductPayload struct {
	Nom               string           `json:"nom"`
	Slug              string           `json:"slug,omitempty"`
	DescriptionCourte string           `json:"description_courte,omitempty"`
	DescriptionLong   string           `json:"description_long,omitempty"`
	GarantieMois      *int             `json:"garantie_mois,omitempty"`
	PoidsGrammes      *int             `json:"poids_grammes,omitempty"`
	EstActif          *bool            `json:"est_actif,omitempty"`
	Visible           *int             `json:"visible,omitempty"`
	Dimensions        string           `json:"dimensions,omitempty"`
	Etat              string           `json:"etat,omitempty"` // neuf, occasion or reconditionné
	Categorie         any              `json:"categorie,omitempty"`
	Marque            any              `json:"marque,omitempty"`
	ProductAttributes []AttributeValue `json:"product_attributes,omitempty"`
	VariantAttributes []AttributeValue `json:"variant_attributes,omitempty"`

	VarianteNom          string   `json:"variante_nom,omitempty"`
	SKU                  string   `json:"sku,omitempty"`
	CodeBarres           string   `json:"code_barres,omitempty"`
	Prix                 *float64 `json:"prix,omitempty"`
	PrixPromo            *float64 `json:"prix_promo,omitempty"`
	PromoActive          *bool    `json:"promo_active,omitempty"`
	PromoDebut           *string  `json:"promo_debut,omitempty"`
	PromoFin             *string  `json:"promo_fin,omitempty"`
	Stock                *int     `json:"stock,omitempty"`
	Couleur              any      `json:"couleur,omitempty"`
	PrixAchat            *float64 `json:"prix_achat,omitempty"`
	VariantePoidsGrammes *int     `json:"variante_poids_grammes,omitempty"`
	VarianteEstActif     *bool    `json:"variante_est_actif,omitempty"`

	Images []Image `json:"images,omitempty"`
}
