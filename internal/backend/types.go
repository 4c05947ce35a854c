package backend

// TokenTriple is the credential payload the e-store API returns from
// register, verify, login, and refresh. Field names follow the backend's
// wire contract; this is the one canonical token shape, superseding the
// lowercase spellings older API revisions used.
type TokenTriple struct {
	AccessToken  string `json:"AccessToken"`
	IDToken      string `json:"IdToken"`
	RefreshToken string `json:"RefreshToken"`
	TokenType    string `json:"TokenType,omitempty"`
}

// Complete reports whether all three tokens are present.
func (t TokenTriple) Complete() bool {
	return t.AccessToken != "" && t.IDToken != "" && t.RefreshToken != ""
}

// RegisterRequest is the JSON body for POST /v1/register.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Gender   string `json:"gender"`
}

// LoginRequest is the JSON body for POST /v1/login.
type LoginRequest struct {
	Identity string `json:"identity"`
	Password string `json:"password"`
}

// AuthResponse wraps the token triple returned by the auth endpoints.
type AuthResponse struct {
	Tokens   *TokenTriple `json:"tokens"`
	Username string       `json:"username"`
	Email    string       `json:"email"`
}

// Profile is the response of GET /v1/profile.
type Profile struct {
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Groups   []string `json:"groups,omitempty"`
}

// Product is the storefront's product projection. Consumed as an opaque
// collaborator payload; the session gateway adds no product logic.
type Product struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price"`
	Category    string  `json:"category,omitempty"`
	ImageURL    string  `json:"imageUrl,omitempty"`
}

// Category is an entry of GET /v1/category.
type Category struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// Country is an entry of GET /v1/country.
type Country struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// OrderItem is a single product line in an order or checkout request.
type OrderItem struct {
	ProductID string `json:"productId"`
	Count     int    `json:"count"`
}

// Location is the delivery destination on a checkout request.
type Location struct {
	Country string `json:"country"`
	Address string `json:"address"`
}

// OrderRequest is the JSON body for POST /v1/order/create.
type OrderRequest struct {
	Orders []OrderItem `json:"orders"`
}

// Order is an entry of GET /v1/order.
type Order struct {
	ID     string      `json:"id"`
	Status string      `json:"status"`
	Orders []OrderItem `json:"orders"`
}

// CheckoutRequest is the JSON body for POST /v1/payment/checkout.
type CheckoutRequest struct {
	Orders   []OrderItem `json:"orders"`
	Location Location    `json:"location"`
}

// CheckoutResponse carries the hosted payment page URL.
type CheckoutResponse struct {
	URL string `json:"url"`
}
