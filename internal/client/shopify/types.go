package shopify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ID is an upstream identifier. The platform emits ids as JSON numbers in
// some payloads and strings in others; both decode to the literal digits.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("shopify: invalid id %s", string(data))
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// Int64 returns the numeric form used by since_id, or 0 when not numeric.
func (id ID) Int64() int64 {
	n, err := strconv.ParseInt(string(id), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// Money is a decimal amount carried as text. Numbers are accepted too.
type Money string

func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*m = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*m = Money(strings.TrimSpace(s))
		return nil
	}
	*m = Money(string(data))
	return nil
}

// Timestamp tolerates empty and malformed values, which decode to zero.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil || strings.TrimSpace(s) == "" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(s))
	if err != nil {
		t.Time = time.Time{}
		return nil
	}
	t.Time = parsed.UTC()
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.UTC().Format(time.RFC3339))
}

// Ptr returns nil for a zero timestamp.
func (t Timestamp) Ptr() *time.Time {
	if t.IsZero() {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

type CustomerRef struct {
	ID    ID      `json:"id"`
	Email *string `json:"email"`
}

type Customer struct {
	ID               ID        `json:"id" validate:"required"`
	Email            *string   `json:"email"`
	FirstName        *string   `json:"first_name"`
	LastName         *string   `json:"last_name"`
	Phone            *string   `json:"phone"`
	State            *string   `json:"state"`
	Tags             *string   `json:"tags"`
	OrdersCount      int       `json:"orders_count"`
	TotalSpent       Money     `json:"total_spent"`
	AcceptsMarketing bool      `json:"accepts_marketing"`
	CreatedAt        Timestamp `json:"created_at"`
	UpdatedAt        Timestamp `json:"updated_at"`

	Raw json.RawMessage `json:"-"`
}

func (c *Customer) setRaw(raw json.RawMessage) { c.Raw = raw }

type LineItem struct {
	ID            ID      `json:"id"`
	ProductID     ID      `json:"product_id"`
	VariantID     ID      `json:"variant_id"`
	SKU           *string `json:"sku"`
	Title         string  `json:"title"`
	Quantity      int     `json:"quantity"`
	Price         Money   `json:"price"`
	TotalDiscount Money   `json:"total_discount"`
}

type Order struct {
	ID                ID           `json:"id" validate:"required"`
	Name              *string      `json:"name"`
	Email             *string      `json:"email"`
	CartToken         *string      `json:"cart_token"`
	Currency          string       `json:"currency"`
	TotalPrice        Money        `json:"total_price"`
	SubtotalPrice     Money        `json:"subtotal_price"`
	TotalTax          Money        `json:"total_tax"`
	TotalDiscounts    Money        `json:"total_discounts"`
	FinancialStatus   *string      `json:"financial_status"`
	FulfillmentStatus *string      `json:"fulfillment_status"`
	CancelledAt       Timestamp    `json:"cancelled_at"`
	CreatedAt         Timestamp    `json:"created_at"`
	UpdatedAt         Timestamp    `json:"updated_at"`
	Customer          *CustomerRef `json:"customer"`
	LineItems         []LineItem   `json:"line_items"`

	Raw json.RawMessage `json:"-"`
}

func (o *Order) setRaw(raw json.RawMessage) { o.Raw = raw }

type Variant struct {
	ID                ID      `json:"id"`
	SKU               *string `json:"sku"`
	Price             Money   `json:"price"`
	InventoryQuantity int     `json:"inventory_quantity"`
}

type Product struct {
	ID          ID        `json:"id" validate:"required"`
	Title       string    `json:"title"`
	Handle      *string   `json:"handle"`
	Vendor      *string   `json:"vendor"`
	ProductType *string   `json:"product_type"`
	Status      *string   `json:"status"`
	Tags        *string   `json:"tags"`
	Variants    []Variant `json:"variants"`
	CreatedAt   Timestamp `json:"created_at"`
	UpdatedAt   Timestamp `json:"updated_at"`

	Raw json.RawMessage `json:"-"`
}

func (p *Product) setRaw(raw json.RawMessage) { p.Raw = raw }

type CartLineItem struct {
	ID        ID      `json:"id"`
	ProductID ID      `json:"product_id"`
	VariantID ID      `json:"variant_id"`
	Title     string  `json:"title"`
	SKU       *string `json:"sku"`
	Quantity  int     `json:"quantity"`
	Price     Money   `json:"price"`
	LinePrice Money   `json:"line_price"`
}

type Cart struct {
	ID         ID             `json:"id"`
	Token      string         `json:"token"`
	Currency   string         `json:"currency"`
	TotalPrice Money          `json:"total_price"`
	Note       *string        `json:"note"`
	Customer   *CustomerRef   `json:"customer"`
	LineItems  []CartLineItem `json:"line_items" validate:"dive"`
	CreatedAt  Timestamp      `json:"created_at"`
	UpdatedAt  Timestamp      `json:"updated_at"`
}

// CartToken prefers the token field and falls back to the id.
func (c Cart) CartToken() string {
	if c.Token != "" {
		return c.Token
	}
	return c.ID.String()
}

type Address struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Address1  *string `json:"address1"`
	Address2  *string `json:"address2"`
	City      *string `json:"city"`
	Province  *string `json:"province"`
	Country   *string `json:"country"`
	Zip       *string `json:"zip"`
}

type Checkout struct {
	ID              ID             `json:"id"`
	Token           string         `json:"token"`
	CartToken       *string        `json:"cart_token"`
	Email           *string        `json:"email"`
	Currency        string         `json:"currency"`
	TotalPrice      Money          `json:"total_price"`
	SubtotalPrice   Money          `json:"subtotal_price"`
	Customer        *CustomerRef   `json:"customer"`
	LineItems       []CartLineItem `json:"line_items"`
	BillingAddress  *Address       `json:"billing_address"`
	ShippingAddress *Address       `json:"shipping_address"`
	CreatedAt       Timestamp      `json:"created_at"`
	UpdatedAt       Timestamp      `json:"updated_at"`
	CompletedAt     Timestamp      `json:"completed_at"`
}
