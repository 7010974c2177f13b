package scanning

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/fridge-chef/internal/kitchen"
	"github.com/zombor/fridge-chef/internal/llm"
)

// mockModel is a mock implementation of llm.Model
type mockModel struct {
	reply    string
	err      error
	requests []llm.Request
}

func (m *mockModel) Generate(ctx context.Context, req llm.Request) (string, error) {
	m.requests = append(m.requests, req)
	if m.err != nil {
		return "", m.err
	}
	return m.reply, nil
}

func (m *mockModel) Name() string {
	return "mock/test"
}

func (m *mockModel) Close() error {
	return nil
}

var _ = Describe("Extractor", func() {
	var (
		model       *mockModel
		extractor   *Extractor
		images      []Image
		ingredients []kitchen.Ingredient
		err         error
	)

	BeforeEach(func() {
		model = &mockModel{reply: `{"ingredients": ["Chicken", "Rice", "Onion"]}`}
		extractor = NewExtractor(model)
		images = []Image{
			{MIMEType: "image/jpeg", Data: []byte("one")},
			{MIMEType: "image/png", Data: []byte("two")},
		}
	})

	JustBeforeEach(func() {
		ingredients, err = extractor.Extract(context.Background(), images)
	})

	When("the model replies with a list", func() {
		It("should return the ingredients in order", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(ingredients).To(Equal([]kitchen.Ingredient{{Name: "Chicken"}, {Name: "Rice"}, {Name: "Onion"}}))
		})

		It("should send every image in a single request", func() {
			Expect(model.requests).To(HaveLen(1))
			Expect(model.requests[0].Images).To(Equal([]llm.Image{
				{MIMEType: "image/jpeg", Data: []byte("one")},
				{MIMEType: "image/png", Data: []byte("two")},
			}))
			Expect(model.requests[0].Prompt).To(ContainSubstring(`"ingredients"`))
		})
	})

	When("the model repeats items across images", func() {
		BeforeEach(func() {
			model.reply = `["Egg", "egg", "Milk"]`
		})

		It("should deduplicate case-insensitively", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(ingredients).To(Equal([]kitchen.Ingredient{{Name: "Egg"}, {Name: "Milk"}}))
		})
	})

	When("the service fails", func() {
		var serviceErr *llm.ServiceError

		BeforeEach(func() {
			serviceErr = &llm.ServiceError{Provider: "mock", Kind: llm.KindRateLimit, StatusCode: 429, Err: errors.New("slow down")}
			model.err = serviceErr
		})

		It("should return ErrExtractionService", func() {
			Expect(err).To(MatchError(ErrExtractionService))
		})

		It("should keep the ServiceError reachable", func() {
			var se *llm.ServiceError
			Expect(errors.As(err, &se)).To(BeTrue())
			Expect(se.Kind).To(Equal(llm.KindRateLimit))
		})

		It("should not retry", func() {
			Expect(model.requests).To(HaveLen(1))
		})
	})

	When("the reply cannot be parsed", func() {
		BeforeEach(func() {
			model.reply = "I see some eggs and milk."
		})

		It("should return ErrExtractionParse with the raw reply", func() {
			Expect(err).To(MatchError(ErrExtractionParse))
			var parseErr *ExtractionParseError
			Expect(errors.As(err, &parseErr)).To(BeTrue())
			Expect(parseErr.Raw).To(Equal("I see some eggs and milk."))
		})
	})

	When("no food is visible", func() {
		BeforeEach(func() {
			model.reply = `{"ingredients": []}`
		})

		It("should return ErrNoIngredients", func() {
			Expect(err).To(MatchError(ErrNoIngredients))
			Expect(ingredients).To(BeEmpty())
		})
	})

	When("there are no images", func() {
		BeforeEach(func() {
			images = nil
		})

		It("should not call the model", func() {
			Expect(err).To(MatchError(ErrNoImages))
			Expect(model.requests).To(BeEmpty())
		})
	})
})
