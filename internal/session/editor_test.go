package session

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/fridge-chef/internal/kitchen"
)

var _ = Describe("Editor", func() {
	var (
		source []kitchen.Ingredient
		editor *Editor
	)

	BeforeEach(func() {
		source = []kitchen.Ingredient{{Name: "Chicken"}, {Name: "Rice"}, {Name: "Onion"}}
		editor = NewEditor(source)
	})

	It("does not share the source slice", func() {
		Expect(editor.Edit(0, kitchen.Ingredient{Name: "Tofu"})).To(Succeed())
		Expect(source[0].Name).To(Equal("Chicken"))
	})

	Describe("Add", func() {
		It("appends a trimmed ingredient", func() {
			Expect(editor.Add(kitchen.Ingredient{Name: "  Garlic ", Quantity: "2", Unit: "cloves"})).To(Succeed())
			Expect(editor.List()[3]).To(Equal(kitchen.Ingredient{Name: "Garlic", Quantity: "2", Unit: "cloves"}))
		})

		It("allows duplicates", func() {
			Expect(editor.Add(kitchen.Ingredient{Name: "Rice"})).To(Succeed())
			Expect(editor.Len()).To(Equal(4))
		})

		It("rejects a blank name", func() {
			Expect(editor.Add(kitchen.Ingredient{Name: "   "})).To(MatchError(kitchen.ErrEmptyIngredient))
			Expect(editor.Len()).To(Equal(3))
		})
	})

	Describe("Remove", func() {
		It("removes the ingredient at the index", func() {
			Expect(editor.Remove(2)).To(Succeed())
			Expect(names(editor.List())).To(Equal([]string{"Chicken", "Rice"}))
		})

		DescribeTable("rejects indexes out of range without mutating",
			func(i int) {
				err := editor.Remove(i)
				Expect(err).To(MatchError(ErrIndexOutOfRange))
				var rangeErr *IndexOutOfRangeError
				Expect(err).To(BeAssignableToTypeOf(rangeErr))
				Expect(editor.Len()).To(Equal(3))
			},
			Entry("negative", -1),
			Entry("past the end", 3),
		)
	})

	Describe("Edit", func() {
		It("replaces the ingredient", func() {
			Expect(editor.Edit(1, kitchen.Ingredient{Name: "Brown rice", Quantity: "1", Unit: "cup"})).To(Succeed())
			Expect(names(editor.List())).To(Equal([]string{"Chicken", "Brown rice", "Onion"}))
		})

		It("rejects an index out of range", func() {
			Expect(editor.Edit(7, kitchen.Ingredient{Name: "Tofu"})).To(MatchError(ErrIndexOutOfRange))
		})

		It("rejects a blank name", func() {
			Expect(editor.Edit(0, kitchen.Ingredient{})).To(MatchError(kitchen.ErrEmptyIngredient))
			Expect(editor.List()[0].Name).To(Equal("Chicken"))
		})
	})

	Describe("List", func() {
		It("returns a copy", func() {
			list := editor.List()
			list[0].Name = "Changed"
			Expect(editor.List()[0].Name).To(Equal("Chicken"))
		})
	})

	Describe("Commit", func() {
		It("freezes the current list", func() {
			req, err := editor.Commit(kitchen.Preferences{Diets: []string{"low-carb"}}, 2, 5)
			Expect(err).NotTo(HaveOccurred())

			Expect(editor.Remove(0)).To(Succeed())
			Expect(names(req.Ingredients)).To(Equal([]string{"Chicken", "Rice", "Onion"}))
			Expect(req.Preferences.Diets).To(Equal([]string{"Low-Carb"}))
			Expect(req.Count).To(Equal(2))
		})

		It("rejects a count above the maximum", func() {
			_, err := editor.Commit(kitchen.Preferences{}, 6, 5)
			Expect(err).To(MatchError(kitchen.ErrInvalidCount))
		})

		It("rejects an empty list", func() {
			_, err := NewEditor(nil).Commit(kitchen.Preferences{}, 1, 5)
			Expect(err).To(MatchError(kitchen.ErrNoIngredientsSelected))
		})
	})
})

var _ = Describe("Stage", func() {
	It("round-trips through text", func() {
		for s := Idle; s <= DocumentRendered; s++ {
			text, err := s.MarshalText()
			Expect(err).NotTo(HaveOccurred())
			var back Stage
			Expect(back.UnmarshalText(text)).To(Succeed())
			Expect(back).To(Equal(s))
		}
	})

	It("rejects unknown names", func() {
		var s Stage
		Expect(s.UnmarshalText([]byte("cooking"))).NotTo(Succeed())
	})

	DescribeTable("transition table",
		func(stage Stage, action Action, allowed bool) {
			Expect(stage.Allowed(action)).To(Equal(allowed))
		},
		Entry("upload from idle", Idle, ActionUpload, true),
		Entry("upload from rendered", DocumentRendered, ActionUpload, true),
		Entry("extract from idle", Idle, ActionExtract, false),
		Entry("extract from uploaded", ImagesUploaded, ActionExtract, true),
		Entry("edit before extraction", ImagesUploaded, ActionEditIngredients, false),
		Entry("generate before confirm", IngredientsExtracted, ActionGenerate, false),
		Entry("select from generated", RecipesGenerated, ActionSelect, true),
		Entry("select from rendered", DocumentRendered, ActionSelect, true),
		Entry("render before select", RecipesGenerated, ActionRender, false),
		Entry("unknown action", DocumentRendered, Action("bake"), false),
	)
})
