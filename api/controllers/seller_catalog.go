package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// SellerProductList includes inactive products and accepts the public filters.
func SellerProductList(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("catalog"))
			return
		}
		query, err := parseProductQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		query.Search = validators.SanitizeString(r.URL.Query().Get("q"), maxSearchLength)
		query.IncludeInactive = true
		result, err := svc.ListProducts(r.Context(), query)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func SellerProductCreate(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("catalog"))
			return
		}
		var input catalog.ProductInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.CreateProduct(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{"product": product})
	}
}

func SellerProductUpdate(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("catalog"))
			return
		}
		id, err := validators.ParsePathUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var input catalog.ProductInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.UpdateProduct(r.Context(), id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"product": product})
	}
}

func SellerProductDelete(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return sellerDelete("productId", "Product deleted", func(ctx context.Context, id uuid.UUID) error {
		return svc.DeleteProduct(ctx, id)
	}, svc == nil, logg)
}

// SellerCategorySave creates when the route has no categoryId, updates otherwise.
func SellerCategorySave(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return sellerSave(svc == nil, "categoryId", "category", logg,
		func(ctx context.Context, id *uuid.UUID, input catalog.CategoryInput) (any, error) {
			return svc.SaveCategory(ctx, id, input)
		})
}

func SellerCategoryDelete(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return sellerDelete("categoryId", "Category deleted", func(ctx context.Context, id uuid.UUID) error {
		return svc.DeleteCategory(ctx, id)
	}, svc == nil, logg)
}

func SellerBrandSave(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return sellerSave(svc == nil, "brandId", "brand", logg,
		func(ctx context.Context, id *uuid.UUID, input catalog.BrandInput) (any, error) {
			return svc.SaveBrand(ctx, id, input)
		})
}

func SellerBrandDelete(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return sellerDelete("brandId", "Brand deleted", func(ctx context.Context, id uuid.UUID) error {
		return svc.DeleteBrand(ctx, id)
	}, svc == nil, logg)
}

func SellerAttributeSave(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return sellerSave(svc == nil, "attributeId", "attribute", logg,
		func(ctx context.Context, id *uuid.UUID, input catalog.AttributeInput) (any, error) {
			return svc.SaveAttribute(ctx, id, input)
		})
}

func SellerAttributeDelete(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return sellerDelete("attributeId", "Attribute deleted", func(ctx context.Context, id uuid.UUID) error {
		return svc.DeleteAttribute(ctx, id)
	}, svc == nil, logg)
}

func sellerSave[In any](missing bool, param, key string, logg *logger.Logger, save func(context.Context, *uuid.UUID, In) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if missing {
			responses.WriteError(r.Context(), logg, w, unavailable("catalog"))
			return
		}
		var id *uuid.UUID
		status := http.StatusCreated
		if chiParam(r, param) != "" {
			parsed, err := validators.ParsePathUUID(r, param)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			id = &parsed
			status = http.StatusOK
		}
		var input In
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		saved, err := save(r.Context(), id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, status, map[string]any{key: saved})
	}
}

func sellerDelete(param, message string, remove func(context.Context, uuid.UUID) error, missing bool, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if missing {
			responses.WriteError(r.Context(), logg, w, unavailable("seller"))
			return
		}
		id, err := validators.ParsePathUUID(r, param)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := remove(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteMessage(w, http.StatusOK, message)
	}
}
