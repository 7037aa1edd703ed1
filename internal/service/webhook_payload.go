package service

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"storesync/internal/client/shopify"
)

// WebhookPayload is the decoded body of one delivery. The concrete type is
// chosen by topic; topics outside the handled set decode to UnknownPayload.
type WebhookPayload interface {
	Family() string
}

type OrderPayload struct{ Order shopify.Order }
type CustomerPayload struct{ Customer shopify.Customer }
type ProductPayload struct{ Product shopify.Product }
type CartPayload struct{ Cart shopify.Cart }
type CheckoutPayload struct{ Checkout shopify.Checkout }

type DeletePayload struct {
	Resource string
	ID       shopify.ID
}

type UnknownPayload struct{ Topic string }

func (OrderPayload) Family() string    { return "orders" }
func (CustomerPayload) Family() string { return "customers" }
func (ProductPayload) Family() string  { return "products" }
func (CartPayload) Family() string     { return "carts" }
func (CheckoutPayload) Family() string { return "checkouts" }
func (p DeletePayload) Family() string { return p.Resource }
func (UnknownPayload) Family() string  { return "unknown" }

// SplitTopic returns the resource and action of "resource/action".
func SplitTopic(topic string) (string, string) {
	topic = strings.ToLower(strings.TrimSpace(topic))
	resource, action, _ := strings.Cut(topic, "/")
	return resource, action
}

func DecodeWebhookPayload(topic string, body []byte, validate *validator.Validate) (WebhookPayload, error) {
	resource, action := SplitTopic(topic)
	if action == "delete" {
		var ref struct {
			ID shopify.ID `json:"id"`
		}
		if err := decodeObject(body, &ref); err != nil {
			return nil, err
		}
		return DeletePayload{Resource: resource, ID: ref.ID}, nil
	}

	switch resource {
	case "orders":
		var p OrderPayload
		if err := decodeValid(body, &p.Order, validate); err != nil {
			return nil, err
		}
		p.Order.Raw = append(json.RawMessage(nil), body...)
		return p, nil
	case "customers":
		var p CustomerPayload
		if err := decodeValid(body, &p.Customer, validate); err != nil {
			return nil, err
		}
		p.Customer.Raw = append(json.RawMessage(nil), body...)
		return p, nil
	case "products":
		var p ProductPayload
		if err := decodeValid(body, &p.Product, validate); err != nil {
			return nil, err
		}
		p.Product.Raw = append(json.RawMessage(nil), body...)
		return p, nil
	case "carts":
		var p CartPayload
		if err := decodeValid(body, &p.Cart, validate); err != nil {
			return nil, err
		}
		if p.Cart.CartToken() == "" {
			return nil, fmt.Errorf("%w: cart token is required", ErrInvalidPayload)
		}
		return p, nil
	case "checkouts":
		var p CheckoutPayload
		if err := decodeValid(body, &p.Checkout, validate); err != nil {
			return nil, err
		}
		if p.Checkout.Token == "" && p.Checkout.ID == "" {
			return nil, fmt.Errorf("%w: checkout token is required", ErrInvalidPayload)
		}
		return p, nil
	default:
		return UnknownPayload{Topic: topic}, nil
	}
}

func decodeValid(body []byte, dst any, validate *validator.Validate) error {
	if err := decodeObject(body, dst); err != nil {
		return err
	}
	if validate == nil {
		return nil
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

func decodeObject(body []byte, dst any) error {
	trimmed := strings.TrimSpace(string(body))
	if !strings.HasPrefix(trimmed, "{") {
		return fmt.Errorf("%w: body is not a JSON object", ErrInvalidPayload)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}
