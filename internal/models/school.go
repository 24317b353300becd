package models

import "time"

// School represents a driving school listed on the platform.
type School struct {
	ID          string    `db:"id" json:"id"`
	ManagerID   string    `db:"manager_id" json:"manager_id"`
	Name        string    `db:"name" json:"name"`
	State       string    `db:"state" json:"state"`
	Address     string    `db:"address" json:"address"`
	Phone       string    `db:"phone" json:"phone"`
	Description string    `db:"description" json:"description"`
	Price       float64   `db:"price" json:"price"`
	Rating      float64   `db:"rating" json:"rating"`
	RatingCount int       `db:"rating_count" json:"rating_count"`
	PhotoPath   string    `db:"photo_path" json:"-"`
	PhotoURL    string    `db:"-" json:"photo_url,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// SchoolFilter captures catalog search criteria.
type SchoolFilter struct {
	State     string
	MinPrice  *float64
	MaxPrice  *float64
	MinRating *float64
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// AlgerianStates lists the 58 wilayas a school can be registered in.
var AlgerianStates = []string{
	"Adrar", "Chlef", "Laghouat", "Oum El Bouaghi", "Batna", "Béjaïa",
	"Biskra", "Béchar", "Blida", "Bouira", "Tamanrasset", "Tébessa",
	"Tlemcen", "Tiaret", "Tizi Ouzou", "Alger", "Djelfa", "Jijel",
	"Sétif", "Saïda", "Skikda", "Sidi Bel Abbès", "Annaba", "Guelma",
	"Constantine", "Médéa", "Mostaganem", "M'Sila", "Mascara", "Ouargla",
	"Oran", "El Bayadh", "Illizi", "Bordj Bou Arréridj", "Boumerdès",
	"El Tarf", "Tindouf", "Tissemsilt", "El Oued", "Khenchela",
	"Souk Ahras", "Tipaza", "Mila", "Aïn Defla", "Naâma",
	"Aïn Témouchent", "Ghardaïa", "Relizane", "Timimoun",
	"Bordj Badji Mokhtar", "Ouled Djellal", "Béni Abbès", "In Salah",
	"In Guezzam", "Touggourt", "Djanet", "El M'Ghair", "El Meniaa",
}

// IsValidState reports whether the given wilaya name is known.
func IsValidState(state string) bool {
	for _, s := range AlgerianStates {
		if s == state {
			return true
		}
	}
	return false
}
