package handlers

import (
	"errors"
	"math"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/ajperformance/storefront/backend/models"
	"github.com/ajperformance/storefront/backend/service"
	"github.com/go-chi/chi/v5"
)

// maxFormBytes bounds a whole e-book form: the cover plus text fields.
const maxFormBytes = service.MaxImageBytes + 1<<20

type EBooksHandler struct {
	EBooks *service.EBooks
}

// List returns a page of display rows. Query: page, limit, search, categoryId.
func (h *EBooksHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := h.EBooks.List(r.Context(), listQuery(r))
	if err != nil {
		// Store failures surface as 502; the browse listings degrade them to an empty page.
		writeError(w, err)
		return
	}
	views := models.Page[models.EBookView]{
		Items:  h.EBooks.Project(r.Context(), page.Items),
		Total:  page.Total,
		Limit:  page.Limit,
		Offset: page.Offset,
	}
	writeJSON(w, http.StatusOK, toPageResponse(views))
}

func (h *EBooksHandler) Get(w http.ResponseWriter, r *http.Request) {
	book, err := h.EBooks.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.EBooks.Project(r.Context(), []models.EBook{*book})[0])
}

// Create takes a multipart form: title, description, price, categorie and either an "image"
// file or the id of an already uploaded image in "imageId".
func (h *EBooksHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}
	img, closeImg, err := formImage(r)
	if err != nil {
		http.Error(w, `{"error":"failed to read image"}`, http.StatusBadRequest)
		return
	}
	defer closeImg()

	in := service.EBookInput{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Image:       r.FormValue("imageId"),
		Categorie:   categoryField(r),
	}
	if p, ok := priceField(r); ok {
		in.Price = &p
	}
	book, err := h.EBooks.CreateWithImage(r.Context(), in, img)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.EBooks.Project(r.Context(), []models.EBook{*book})[0])
}

// Update applies only the fields present in the form. A new "image" file replaces the cover.
func (h *EBooksHandler) Update(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}
	img, closeImg, err := formImage(r)
	if err != nil {
		http.Error(w, `{"error":"failed to read image"}`, http.StatusBadRequest)
		return
	}
	defer closeImg()

	var patch models.EBookPatch
	patch.Title = formField(r, "title")
	patch.Description = formField(r, "description")
	patch.Image = formField(r, "imageId")
	if patch.Categorie = formField(r, "categorie"); patch.Categorie == nil {
		patch.Categorie = formField(r, "categoryId")
	}
	if formField(r, "price") != nil {
		p, ok := priceField(r)
		if !ok {
			p = math.NaN()
		}
		patch.Price = &p
	}
	if patch.Empty() && img == nil {
		http.Error(w, `{"error":"no fields to update"}`, http.StatusBadRequest)
		return
	}
	book, err := h.EBooks.UpdateWithImage(r.Context(), chi.URLParam(r, "id"), patch, img)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.EBooks.Project(r.Context(), []models.EBook{*book})[0])
}

// Delete removes the e-book and then its cover image.
func (h *EBooksHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.EBooks.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseForm(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseMultipartForm(maxFormBytes); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			http.Error(w, `{"error":"File size exceeds 5MB limit. Please upload a smaller image."}`, http.StatusRequestEntityTooLarge)
			return false
		}
		http.Error(w, `{"error":"failed to parse multipart form"}`, http.StatusBadRequest)
		return false
	}
	return true
}

// formImage returns the "image" part, or nil when the form has none.
func formImage(r *http.Request) (*service.ImageFile, func(), error) {
	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, func() {}, nil
	}
	if err != nil {
		return nil, func() {}, err
	}
	return imageFile(file, header), func() { file.Close() }, nil
}

func imageFile(file multipart.File, header *multipart.FileHeader) *service.ImageFile {
	return &service.ImageFile{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	}
}

// formField returns a pointer to the value of key, or nil if the form does not carry it.
func formField(r *http.Request, key string) *string {
	if r.MultipartForm == nil {
		return nil
	}
	vals, ok := r.MultipartForm.Value[key]
	if !ok || len(vals) == 0 {
		return nil
	}
	v := vals[0]
	return &v
}

func categoryField(r *http.Request) string {
	if v := r.FormValue("categorie"); v != "" {
		return v
	}
	return r.FormValue("categoryId")
}

func priceField(r *http.Request) (float64, bool) {
	s := strings.TrimSpace(r.FormValue("price"))
	if s == "" {
		return 0, false
	}
	p, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return p, true
}
