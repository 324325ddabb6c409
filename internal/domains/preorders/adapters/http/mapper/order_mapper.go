package mapper

import (
	"github.com/Apurer/preorder-gateway/internal/domains/preorders/domain"
	"github.com/Apurer/preorder-gateway/internal/shared/result"
)

// OrderLine is the transport shape of one requested product. A JSON null
// product id decodes to nil and is rejected by the calculator.
type OrderLine struct {
	ProductID *string `json:"productId"`
	Quantity  int     `json:"quantity"`
}

// ToDomainLines converts the request body into order lines.
func ToDomainLines(lines []OrderLine) []domain.OrderLine {
	if lines == nil {
		return nil
	}
	out := make([]domain.OrderLine, 0, len(lines))
	for _, line := range lines {
		var id string
		if line.ProductID != nil {
			id = *line.ProductID
		}
		out = append(out, domain.OrderLine{ProductID: id, Quantity: line.Quantity})
	}
	return out
}

// Envelope is the uniform response body. Data is null on failure.
type Envelope[T any] struct {
	Data          *T       `json:"data"`
	ErrorMessages []string `json:"errorMessages"`
	IsSuccessful  bool     `json:"isSuccessful"`
	StatusCode    int      `json:"statusCode"`
}

// FromResult converts a core result into the response envelope.
func FromResult[T any](res result.Result[T]) Envelope[T] {
	env := Envelope[T]{
		ErrorMessages: append([]string{}, res.ErrorMessages...),
		IsSuccessful:  res.IsSuccessful,
		StatusCode:    res.StatusCode,
	}
	if res.IsSuccessful {
		data := res.Data
		env.Data = &data
	}
	return env
}

// BadRequest builds a failed envelope for input the core never saw.
func BadRequest[T any](message string) Envelope[T] {
	return FromResult(result.Failure[T](400, message))
}
