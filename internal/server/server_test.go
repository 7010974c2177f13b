package server

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"regexp"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/fridge-chef/internal/chef"
	"github.com/zombor/fridge-chef/internal/kitchen"
	"github.com/zombor/fridge-chef/internal/llm"
	"github.com/zombor/fridge-chef/internal/render"
	"github.com/zombor/fridge-chef/internal/scanning"
	"github.com/zombor/fridge-chef/internal/session"
)

var _ = Describe("Server", func() {
	var (
		extractor   *mockExtractor
		generator   *mockGenerator
		manager     *session.Manager
		options     Options
		auth        BasicAuth
		server      *Server
		ghttpServer *ghttp.Server
	)

	setupServer := func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
		server = NewServerWithMux(manager, options, auth, http.NewServeMux())
		ghttpServer = ghttp.NewServer()
		anyPath := regexp.MustCompile(".*")
		for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions} {
			ghttpServer.RouteToHandler(method, anyPath, server.ServeHTTP)
		}
	}

	BeforeEach(func() {
		extractor = &mockExtractor{ingredients: []kitchen.Ingredient{
			{Name: "Chicken"},
			{Name: "Rice", Quantity: "2", Unit: "cups"},
			{Name: "Onion"},
		}}
		generator = &mockGenerator{recipes: sampleRecipes()}
		orch := session.NewOrchestrator(
			scanning.NewNormalizer(scanning.Limits{MaxImages: 3}),
			extractor,
			generator,
			render.NewPDF(),
			5,
		)
		manager = session.NewManagerWithDeps(session.NewMemoryStore(), orch, session.DefaultTimeouts, &sequenceIDs{}, clock{})
		options = Options{MaxImages: 3, MaxRecipes: 5}
		auth = BasicAuth{}
		setupServer()
	})

	AfterEach(func() {
		if ghttpServer != nil {
			ghttpServer.Close()
			ghttpServer = nil
		}
	})

	do := func(method, path string, body io.Reader, contentType string) (*http.Response, []byte) {
		req, err := http.NewRequest(method, ghttpServer.URL()+path, body)
		Expect(err).NotTo(HaveOccurred())
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		return resp, data
	}

	doJSON := func(method, path string, v any) (*http.Response, []byte) {
		if v == nil {
			return do(method, path, nil, "")
		}
		data, err := json.Marshal(v)
		Expect(err).NotTo(HaveOccurred())
		return do(method, path, bytes.NewReader(data), "application/json")
	}

	upload := func(id string, files ...[]byte) (*http.Response, []byte) {
		var b bytes.Buffer
		writer := multipart.NewWriter(&b)
		for i, data := range files {
			part, err := writer.CreateFormFile("file", fmt.Sprintf("fridge-%d.png", i))
			Expect(err).NotTo(HaveOccurred())
			part.Write(data)
		}
		Expect(writer.Close()).To(Succeed())
		return do(http.MethodPost, "/api/sessions/"+id+"/images", &b, writer.FormDataContentType())
	}

	decodeView := func(body []byte) sessionView {
		var v sessionView
		Expect(json.Unmarshal(body, &v)).To(Succeed())
		return v
	}

	decodeError := func(body []byte) errorResponse {
		var e errorResponse
		Expect(json.Unmarshal(body, &e)).To(Succeed())
		return e
	}

	createSession := func() string {
		resp, body := doJSON(http.MethodPost, "/api/sessions", nil)
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))
		return decodeView(body).ID
	}

	extracted := func() string {
		id := createSession()
		resp, _ := upload(id, photo(10), photo(20))
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		resp, _ = doJSON(http.MethodPost, "/api/sessions/"+id+"/extract", nil)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		return id
	}

	generated := func() string {
		id := extracted()
		resp, _ := doJSON(http.MethodPost, "/api/sessions/"+id+"/confirm", confirmRequest{Count: 3})
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		resp, _ = doJSON(http.MethodPost, "/api/sessions/"+id+"/recipes", nil)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		return id
	}

	Describe("handleIndex", func() {
		When("request method is GET", func() {
			It("should return HTML containing Fridge Chef", func() {
				resp, body := do(http.MethodGet, "/", nil, "")
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(resp.Header.Get("Content-Type")).To(HavePrefix("text/html"))
				Expect(string(body)).To(ContainSubstring("Fridge Chef"))
			})
		})

		When("request method is not GET", func() {
			It("should return status Method Not Allowed", func() {
				resp, _ := do(http.MethodPost, "/", nil, "")
				Expect(resp.StatusCode).To(Equal(http.StatusMethodNotAllowed))
			})
		})
	})

	Describe("static assets", func() {
		It("serves the stylesheet", func() {
			resp, body := do(http.MethodGet, "/static/app.css", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("text/css"))
			Expect(body).NotTo(BeEmpty())
		})

		It("serves the script", func() {
			resp, body := do(http.MethodGet, "/static/app.js", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(HavePrefix("application/javascript"))
			Expect(string(body)).To(ContainSubstring("/api/sessions"))
		})
	})

	Describe("handleOptions", func() {
		It("returns the preference choices and limits", func() {
			resp, body := doJSON(http.MethodGet, "/api/options", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var got struct {
				Diets      []string `json:"diets"`
				Cuisines   []string `json:"cuisines"`
				MaxImages  int      `json:"max_images"`
				MaxRecipes int      `json:"max_recipes"`
			}
			Expect(json.Unmarshal(body, &got)).To(Succeed())
			Expect(got.Diets).To(Equal(kitchen.DietOptions))
			Expect(got.Cuisines).To(Equal(kitchen.CuisineOptions))
			Expect(got.MaxImages).To(Equal(3))
			Expect(got.MaxRecipes).To(Equal(5))
		})
	})

	Describe("sessions", func() {
		It("creates an idle session", func() {
			resp, body := doJSON(http.MethodPost, "/api/sessions", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))
			Expect(resp.Header.Get("Content-Type")).To(Equal("application/json"))
			Expect(string(body)).To(ContainSubstring(`"ingredients":[]`))

			v := decodeView(body)
			Expect(v.ID).To(Equal("session-1"))
			Expect(v.Stage).To(Equal(session.Idle))
			Expect(v.Images).To(BeEmpty())
			Expect(v.Selected).To(BeNil())
		})

		It("returns an existing session", func() {
			id := createSession()
			resp, body := doJSON(http.MethodGet, "/api/sessions/"+id, nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(decodeView(body).ID).To(Equal(id))
		})

		When("the session does not exist", func() {
			It("should return status Not Found", func() {
				resp, body := doJSON(http.MethodGet, "/api/sessions/missing", nil)
				Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
				e := decodeError(body)
				Expect(e.Error).To(ContainSubstring("Session not found"))
				Expect(e.Retryable).To(BeFalse())
			})
		})

		It("deletes a session", func() {
			id := createSession()
			resp, _ := doJSON(http.MethodDelete, "/api/sessions/"+id, nil)
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))

			resp, _ = doJSON(http.MethodGet, "/api/sessions/"+id, nil)
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("handleUploadImages", func() {
		var id string

		BeforeEach(func() {
			id = createSession()
		})

		When("upload succeeds", func() {
			It("adds every file and reports image metadata", func() {
				resp, body := upload(id, photo(10), photo(20))
				Expect(resp.StatusCode).To(Equal(http.StatusOK))

				v := decodeView(body)
				Expect(v.Stage).To(Equal(session.ImagesUploaded))
				Expect(v.Images).To(HaveLen(2))
				Expect(v.Images[0].Filename).To(Equal("fridge-0.png"))
				Expect(v.Images[0].Width).To(Equal(8))
				Expect(v.Images[0].Bytes).To(BeNumerically(">", 0))
			})

			It("never returns image bytes", func() {
				_, body := upload(id, photo(10))
				Expect(string(body)).NotTo(ContainSubstring(`"data"`))
			})
		})

		When("a photo was already uploaded", func() {
			It("counts it as a duplicate", func() {
				upload(id, photo(10))
				resp, body := upload(id, photo(10))
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				v := decodeView(body)
				Expect(v.Images).To(HaveLen(1))
				Expect(v.Duplicates).To(Equal(1))
			})
		})

		When("no file is provided", func() {
			It("should return status Bad Request", func() {
				resp, body := upload(id)
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				Expect(decodeError(body).Error).To(ContainSubstring("No file"))
			})
		})

		When("invalid multipart form", func() {
			It("should return status Bad Request", func() {
				resp, body := do(http.MethodPost, "/api/sessions/"+id+"/images", bytes.NewBufferString("invalid"), "multipart/form-data")
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				Expect(decodeError(body).Error).To(ContainSubstring("Error parsing form"))
			})
		})

		When("the upload is larger than allowed", func() {
			BeforeEach(func() {
				options.MaxUploadBytes = 512
				setupServer()
			})

			It("should explain the limit", func() {
				resp, body := upload(id, bytes.Repeat([]byte("x"), 4096))
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				Expect(decodeError(body).Error).To(ContainSubstring("too large"))
			})
		})

		When("a file is not an image", func() {
			It("rejects the whole upload", func() {
				resp, body := upload(id, photo(10), []byte("not an image"))
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				Expect(decodeError(body).Error).To(ContainSubstring("unsupported or corrupt image"))

				_, body = doJSON(http.MethodGet, "/api/sessions/"+id, nil)
				Expect(decodeView(body).Images).To(BeEmpty())
			})
		})

		When("too many photos are uploaded", func() {
			It("should return status Bad Request", func() {
				resp, _ := upload(id, photo(1), photo(2), photo(3), photo(4))
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})
		})

		When("the session does not exist", func() {
			It("should return status Not Found", func() {
				resp, _ := upload("missing", photo(10))
				Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			})
		})
	})

	Describe("handleClearImages", func() {
		It("resets the session to idle", func() {
			id := extracted()
			resp, body := doJSON(http.MethodDelete, "/api/sessions/"+id+"/images", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			v := decodeView(body)
			Expect(v.Stage).To(Equal(session.Idle))
			Expect(v.Images).To(BeEmpty())
			Expect(v.Ingredients).To(BeEmpty())
		})
	})

	Describe("handleExtract", func() {
		When("photos were uploaded", func() {
			It("returns the recognized ingredients", func() {
				id := createSession()
				upload(id, photo(10))
				resp, body := doJSON(http.MethodPost, "/api/sessions/"+id+"/extract", nil)
				Expect(resp.StatusCode).To(Equal(http.StatusOK))

				v := decodeView(body)
				Expect(v.Stage).To(Equal(session.IngredientsExtracted))
				Expect(v.Ingredients).To(Equal([]kitchen.Ingredient{
					{Name: "Chicken"},
					{Name: "Rice", Quantity: "2", Unit: "cups"},
					{Name: "Onion"},
				}))
			})
		})

		When("no photos were uploaded", func() {
			It("should return status Conflict", func() {
				id := createSession()
				resp, body := doJSON(http.MethodPost, "/api/sessions/"+id+"/extract", nil)
				Expect(resp.StatusCode).To(Equal(http.StatusConflict))
				Expect(decodeError(body).Error).To(ContainSubstring("cannot extract"))
				Expect(extractor.calls).To(BeZero())
			})
		})

		DescribeTable("extraction failures",
			func(err error, code int, retryable bool) {
				extractor.err = err
				id := createSession()
				upload(id, photo(10))
				resp, body := doJSON(http.MethodPost, "/api/sessions/"+id+"/extract", nil)
				Expect(resp.StatusCode).To(Equal(code))
				Expect(decodeError(body).Retryable).To(Equal(retryable))

				_, body = doJSON(http.MethodGet, "/api/sessions/"+id, nil)
				Expect(decodeView(body).Stage).To(Equal(session.ImagesUploaded))
			},
			Entry("no food found", scanning.ErrNoIngredients, http.StatusUnprocessableEntity, true),
			Entry("rate limited",
				fmt.Errorf("%w: %w", scanning.ErrExtractionService, &llm.ServiceError{Provider: "gemini", Kind: llm.KindRateLimit, Err: errors.New("quota")}),
				http.StatusBadGateway, true),
			Entry("bad credentials",
				fmt.Errorf("%w: %w", scanning.ErrExtractionService, &llm.ServiceError{Provider: "gemini", Kind: llm.KindAuth, Err: errors.New("denied")}),
				http.StatusBadGateway, false),
			Entry("unreadable reply",
				&scanning.ExtractionParseError{Raw: "secret model reply", Err: errors.New("no json")},
				http.StatusBadGateway, true),
		)

		It("does not leak the raw model reply", func() {
			extractor.err = &scanning.ExtractionParseError{Raw: "secret model reply", Err: errors.New("no json")}
			id := createSession()
			upload(id, photo(10))
			_, body := doJSON(http.MethodPost, "/api/sessions/"+id+"/extract", nil)
			Expect(string(body)).NotTo(ContainSubstring("secret model reply"))
		})
	})

	Describe("ingredient editing", func() {
		var id string

		BeforeEach(func() {
			id = extracted()
		})

		It("adds an ingredient", func() {
			resp, body := doJSON(http.MethodPost, "/api/sessions/"+id+"/ingredients", ingredientRequest{Name: " Eggs ", Quantity: "6"})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			v := decodeView(body)
			Expect(v.Ingredients).To(HaveLen(4))
			Expect(v.Ingredients[3]).To(Equal(kitchen.Ingredient{Name: "Eggs", Quantity: "6"}))
		})

		It("edits an ingredient", func() {
			resp, body := doJSON(http.MethodPut, "/api/sessions/"+id+"/ingredients/1", ingredientRequest{Name: "Brown rice", Quantity: "1", Unit: "cup"})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(decodeView(body).Ingredients[1]).To(Equal(kitchen.Ingredient{Name: "Brown rice", Quantity: "1", Unit: "cup"}))
		})

		It("removes an ingredient", func() {
			resp, body := doJSON(http.MethodDelete, "/api/sessions/"+id+"/ingredients/0", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(decodeView(body).Ingredients).To(Equal([]kitchen.Ingredient{
				{Name: "Rice", Quantity: "2", Unit: "cups"},
				{Name: "Onion"},
			}))
		})

		DescribeTable("rejected edits",
			func(method, path string, body any) {
				resp, _ := doJSON(method, "/api/sessions/"+id+path, body)
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

				_, data := doJSON(http.MethodGet, "/api/sessions/"+id, nil)
				Expect(decodeView(data).Ingredients).To(HaveLen(3))
			},
			Entry("blank name", http.MethodPost, "/ingredients", ingredientRequest{Name: "   "}),
			Entry("index is not a number", http.MethodDelete, "/ingredients/first", nil),
			Entry("index out of range", http.MethodPut, "/ingredients/9", ingredientRequest{Name: "Salt"}),
			Entry("negative index", http.MethodDelete, "/ingredients/-1", nil),
		)

		It("rejects a malformed body", func() {
			resp, body := do(http.MethodPost, "/api/sessions/"+id+"/ingredients", strings.NewReader("{"), "application/json")
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(decodeError(body).Error).To(Equal("Invalid request body"))
		})
	})

	Describe("handleConfirm and handleGenerate", func() {
		var id string

		BeforeEach(func() {
			id = extracted()
		})

		It("freezes the request with normalized preferences", func() {
			resp, body := doJSON(http.MethodPost, "/api/sessions/"+id+"/confirm", confirmRequest{
				Diets:     []string{"vegetarian", ""},
				Allergies: []string{" peanuts "},
				Cuisine:   "Any",
				Notes:     "quick",
				Count:     2,
			})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			v := decodeView(body)
			Expect(v.Stage).To(Equal(session.IngredientsConfirmed))
			Expect(v.Request).NotTo(BeNil())
			Expect(v.Request.Count).To(Equal(2))
			Expect(v.Request.Ingredients).To(HaveLen(3))
			Expect(v.Request.Preferences.Allergies).To(Equal([]string{"peanuts"}))
			Expect(v.Request.Preferences.Cuisine).To(BeEmpty())
		})

		DescribeTable("invalid counts",
			func(count int) {
				resp, body := doJSON(http.MethodPost, "/api/sessions/"+id+"/confirm", confirmRequest{Count: count})
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				Expect(decodeError(body).Error).To(ContainSubstring("invalid recipe count"))
			},
			Entry("zero", 0),
			Entry("above the maximum", 6),
		)

		It("generates the requested recipes", func() {
			doJSON(http.MethodPost, "/api/sessions/"+id+"/confirm", confirmRequest{Count: 2})
			resp, body := doJSON(http.MethodPost, "/api/sessions/"+id+"/recipes", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			v := decodeView(body)
			Expect(v.Stage).To(Equal(session.RecipesGenerated))
			Expect(v.Recipes.Recipes).To(HaveLen(2))
			Expect(v.Recipes.Partial).To(BeFalse())
			Expect(generator.requests).To(HaveLen(1))
			Expect(generator.requests[0].Count).To(Equal(2))
		})

		It("reports a partial set", func() {
			generator.recipes = sampleRecipes()[:1]
			doJSON(http.MethodPost, "/api/sessions/"+id+"/confirm", confirmRequest{Count: 3})
			_, body := doJSON(http.MethodPost, "/api/sessions/"+id+"/recipes", nil)
			v := decodeView(body)
			Expect(v.Recipes.Partial).To(BeTrue())
			Expect(v.Recipes.Requested).To(Equal(3))
		})

		When("generation is requested before confirming", func() {
			It("should return status Conflict", func() {
				resp, _ := doJSON(http.MethodPost, "/api/sessions/"+id+"/recipes", nil)
				Expect(resp.StatusCode).To(Equal(http.StatusConflict))
				Expect(generator.requests).To(BeEmpty())
			})
		})

		When("the recipe service fails", func() {
			It("keeps the confirmed request for a retry", func() {
				generator.err = fmt.Errorf("%w: %w", chef.ErrGenerationService, &llm.ServiceError{Provider: "ollama", Kind: llm.KindNetwork, Err: errors.New("refused")})
				doJSON(http.MethodPost, "/api/sessions/"+id+"/confirm", confirmRequest{Count: 1})
				resp, body := doJSON(http.MethodPost, "/api/sessions/"+id+"/recipes", nil)
				Expect(resp.StatusCode).To(Equal(http.StatusBadGateway))
				Expect(decodeError(body).Retryable).To(BeTrue())

				generator.err = nil
				resp, body = doJSON(http.MethodPost, "/api/sessions/"+id+"/recipes", nil)
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(decodeView(body).Recipes.Recipes).To(HaveLen(1))
			})
		})
	})

	Describe("selecting and downloading", func() {
		var id string

		BeforeEach(func() {
			id = generated()
		})

		It("renders the selected recipe as a PDF attachment", func() {
			resp, body := doJSON(http.MethodPost, "/api/sessions/"+id+"/recipes/0/select", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(*decodeView(body).Selected).To(Equal(0))

			resp, body = doJSON(http.MethodPost, "/api/sessions/"+id+"/document", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			v := decodeView(body)
			Expect(v.Stage).To(Equal(session.DocumentRendered))
			Expect(v.Document.Filename).To(Equal("chicken-fried-rice.pdf"))
			Expect(v.Document.Format).To(Equal(kitchen.FormatPDF))

			resp, body = doJSON(http.MethodGet, "/api/sessions/"+id+"/document", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal(kitchen.FormatPDF))
			Expect(resp.Header.Get("Content-Disposition")).To(HavePrefix("attachment"))
			Expect(resp.Header.Get("Content-Disposition")).To(ContainSubstring("chicken-fried-rice.pdf"))
			Expect(resp.Header.Get("Content-Length")).To(Equal(fmt.Sprint(len(body))))
			Expect(string(body)).To(HavePrefix("%PDF-"))
		})

		It("lets another recipe be picked without regenerating", func() {
			doJSON(http.MethodPost, "/api/sessions/"+id+"/recipes/0/select", nil)
			doJSON(http.MethodPost, "/api/sessions/"+id+"/document", nil)

			resp, body := doJSON(http.MethodPost, "/api/sessions/"+id+"/recipes/1/select", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			v := decodeView(body)
			Expect(v.Stage).To(Equal(session.RecipeSelected))
			Expect(v.Document).To(BeNil())
			Expect(generator.requests).To(HaveLen(1))
		})

		When("the index is out of range", func() {
			It("should return status Bad Request", func() {
				resp, _ := doJSON(http.MethodPost, "/api/sessions/"+id+"/recipes/7/select", nil)
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})
		})

		When("nothing was rendered yet", func() {
			It("should return status Not Found", func() {
				resp, body := doJSON(http.MethodGet, "/api/sessions/"+id+"/document", nil)
				Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
				Expect(decodeError(body).Error).To(ContainSubstring("No document"))
			})
		})

		When("rendering before selecting", func() {
			It("should return status Conflict", func() {
				resp, _ := doJSON(http.MethodPost, "/api/sessions/"+id+"/document", nil)
				Expect(resp.StatusCode).To(Equal(http.StatusConflict))
			})
		})
	})

	Describe("authenticate", func() {
		When("no auth is configured", func() {
			It("should return true", func() {
				req, err := http.NewRequest(http.MethodGet, ghttpServer.URL()+"/", nil)
				Expect(err).NotTo(HaveOccurred())
				Expect(server.authenticate(req)).To(BeTrue())
			})
		})

		When("auth is configured", func() {
			BeforeEach(func() {
				auth = BasicAuth{Username: "user", Password: "pass"}
				setupServer()
			})

			DescribeTable("credentials",
				func(header string, expected bool) {
					req, err := http.NewRequest(http.MethodGet, ghttpServer.URL()+"/", nil)
					Expect(err).NotTo(HaveOccurred())
					if header != "" {
						req.Header.Set("Authorization", header)
					}
					Expect(server.authenticate(req)).To(Equal(expected))
				},
				Entry("valid", "Basic "+base64.StdEncoding.EncodeToString([]byte("user:pass")), true),
				Entry("wrong password", "Basic "+base64.StdEncoding.EncodeToString([]byte("user:wrong")), false),
				Entry("missing", "", false),
				Entry("not base64", "Basic !!!", false),
				Entry("no separator", "Basic "+base64.StdEncoding.EncodeToString([]byte("userpass")), false),
			)
		})
	})

	Describe("requireAuth", func() {
		BeforeEach(func() {
			auth = BasicAuth{Username: "user", Password: "pass"}
			setupServer()
		})

		When("request is unauthorized", func() {
			It("should return status Unauthorized with a challenge", func() {
				resp, _ := doJSON(http.MethodPost, "/api/sessions", nil)
				Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
				Expect(resp.Header.Get("WWW-Authenticate")).To(ContainSubstring("Basic"))
			})
		})

		When("request is authorized", func() {
			It("should pass through", func() {
				req, err := http.NewRequest(http.MethodPost, ghttpServer.URL()+"/api/sessions", nil)
				Expect(err).NotTo(HaveOccurred())
				req.SetBasicAuth("user", "pass")
				resp, err := http.DefaultClient.Do(req)
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusCreated))
			})
		})
	})

	Describe("CORS", func() {
		It("answers preflight requests", func() {
			resp, _ := do(http.MethodOptions, "/api/sessions/abc/images", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("*"))
			Expect(resp.Header.Get("Access-Control-Allow-Methods")).To(ContainSubstring("PUT"))
		})

		It("sets headers on errors", func() {
			resp, _ := doJSON(http.MethodGet, "/api/sessions/missing", nil)
			Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("*"))
		})
	})

	Describe("contentType", func() {
		DescribeTable("resolves the upload type",
			func(declared, filename, expected string) {
				Expect(contentType(declared, filename)).To(Equal(expected))
			},
			Entry("declared type wins", "image/PNG", "photo.jpg", "image/png"),
			Entry("parameters are dropped", "image/jpeg; charset=binary", "", "image/jpeg"),
			Entry("octet-stream falls back to the extension", "application/octet-stream", "IMG_0001.HEIC", "image/heic"),
			Entry("missing type falls back to the extension", "", "fridge.webp", "image/webp"),
			Entry("unknown extension is left for sniffing", "", "fridge.bin", ""),
		)
	})

	Describe("classify", func() {
		DescribeTable("maps errors to responses",
			func(err error, code int, retryable bool) {
				gotCode, body := classify(err)
				Expect(gotCode).To(Equal(code))
				Expect(body.Retryable).To(Equal(retryable))
				Expect(body.Error).NotTo(BeEmpty())
			},
			Entry("not found", session.ErrNotFound, http.StatusNotFound, false),
			Entry("invalid image", &scanning.InvalidImageError{Index: 1, Reason: "empty upload"}, http.StatusBadRequest, false),
			Entry("busy", session.ErrBusy, http.StatusConflict, true),
			Entry("stale", session.ErrStale, http.StatusConflict, false),
			Entry("wrong stage", &session.StageError{Action: session.ActionSelect, Stage: session.Idle}, http.StatusConflict, false),
			Entry("server side model error",
				fmt.Errorf("%w: %w", chef.ErrGenerationService, &llm.ServiceError{Kind: llm.KindStatus, StatusCode: 503, Err: errors.New("unavailable")}),
				http.StatusBadGateway, true),
			Entry("client side model error",
				fmt.Errorf("%w: %w", chef.ErrGenerationService, &llm.ServiceError{Kind: llm.KindStatus, StatusCode: 400, Err: errors.New("bad request")}),
				http.StatusBadGateway, false),
			Entry("unreadable recipes", &chef.GenerationParseError{Raw: "x", Err: errors.New("no json")}, http.StatusBadGateway, true),
			Entry("render", &render.RenderError{Title: "x", Err: errors.New("boom")}, http.StatusInternalServerError, false),
			Entry("unknown", errors.New("boom"), http.StatusInternalServerError, false),
		)
	})
})

type clock struct{}

func (clock) Now() time.Time {
	return time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
}
