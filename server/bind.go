package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sort"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/gorilla/schema"
	"github.com/pkg/errors"
)

var schemaDecoder *schema.Decoder

func init() {
	schemaDecoder = schema.NewDecoder()
	schemaDecoder.IgnoreUnknownKeys(true)
}

// msgNoData is returned for a request without a payload.
const msgNoData = "No data provided"

// bindForm decodes form values into dst. Empty values are treated as absent.
func bindForm(values url.Values, dst interface{}) error {
	present := url.Values{}
	for k, vs := range values {
		if len(vs) > 0 && vs[len(vs)-1] != "" {
			present[k] = vs
		}
	}
	return schemaDecoder.Decode(dst, present)
}

// loadJSON decodes the JSON body into dst and validates it when dst implements
// validation.Validatable.
func loadJSON(r *http.Request, dst interface{}) *Message {
	if r.Body == nil {
		return &Message{Error: msgNoData}
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return &Message{Error: msgNoData}
		}
		return &Message{Error: err.Error()}
	}

	v, ok := dst.(validation.Validatable)
	if !ok {
		return nil
	}
	return validate(v)
}

// validate runs the validation of data and formats the failures.
func validate(data validation.Validatable) *Message {
	err := data.Validate()
	if err == nil {
		return nil
	}

	var verr validation.Errors
	if !errors.As(err, &verr) {
		return &Message{Error: err.Error()}
	}

	elist := []Error{}
	for k, v := range verr {
		elist = append(elist, Error{Location: k, Error: v.Error()})
	}
	sort.Slice(elist, func(i, j int) bool { return elist[i].Location < elist[j].Location })

	return &Message{Error: "Invalid input data", Errors: elist}
}
