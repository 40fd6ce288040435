package router

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"julianmorley.ca/con-plar/topup-storefront/internal/storefront"
	"julianmorley.ca/con-plar/topup-storefront/pkg/cart"
	"julianmorley.ca/con-plar/topup-storefront/pkg/checkout"
	"julianmorley.ca/con-plar/topup-storefront/pkg/currency"
	"julianmorley.ca/con-plar/topup-storefront/pkg/global"
	"julianmorley.ca/con-plar/topup-storefront/pkg/models"
)

// respondError writes err using the shared envelope. 401 tells the front end
// to show the login view.
func respondError(c *gin.Context, err error) {
	resp := global.ErrorResponse(global.UserMessage(err), nil)
	var ve global.ValidationError
	if errors.As(err, &ve) {
		resp.Errors = []global.ValidationError{ve}
	}
	status := global.HTTPStatus(err)
	if status == http.StatusUnauthorized {
		resp.Redirect = string(storefront.ViewLogin)
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", zap.String("request_id", c.GetString("request_id")), zap.Error(err))
	}
	_ = c.Error(err)
	c.JSON(status, resp)
}

func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, global.ErrorResponse("Invalid JSON format", []global.ValidationError{
			{Field: "body", Message: err.Error(), Code: "json_parse_error"},
		}))
		return false
	}
	return true
}

func HealthCheck(c *gin.Context) {
	st := shop.State()
	c.JSON(http.StatusOK, global.SuccessResponse(map[string]interface{}{
		"status":  "OK",
		"loading": st.Loading,
		"rate":    st.Rate,
	}))
}

func GetState(c *gin.Context) {
	c.JSON(http.StatusOK, global.SuccessResponse(shop.State()))
}

func DismissNotice(c *gin.Context) {
	shop.DismissNotice()
	c.JSON(http.StatusOK, global.SuccessResponse(shop.State()))
}

type viewRequest struct {
	View      string `json:"view" binding:"required"`
	ProductID int    `json:"product_id"`
}

func SetView(c *gin.Context) {
	var req viewRequest
	if !bindJSON(c, &req) {
		return
	}
	view, ok := storefront.ParseView(req.View)
	if !ok {
		respondError(c, global.ValidationError{Field: "view", Message: "Vista desconocida", Code: "invalid_choice"})
		return
	}
	if view == storefront.ViewProduct {
		if err := shop.OpenProduct(req.ProductID); err != nil {
			respondError(c, err)
			return
		}
	} else {
		shop.Navigate(view)
	}
	c.JSON(http.StatusOK, global.SuccessResponse(shop.State()))
}

// GetStoreConfig returns the branding assets and the resolved rate.
func GetStoreConfig(c *gin.Context) {
	view := shop.Catalog("", "")
	c.JSON(http.StatusOK, global.SuccessResponse(map[string]interface{}{
		"logo":           view.Logo,
		"carousel":       view.Carousel,
		"rate":           view.Rate,
		"currency":       view.Currency,
		"currency_label": view.CurrencyLabel,
	}))
}

type currencyRequest struct {
	Currency string `json:"currency" binding:"required"`
}

func SetCurrency(c *gin.Context) {
	var req currencyRequest
	if !bindJSON(c, &req) {
		return
	}
	mode, ok := currency.ParseMode(req.Currency)
	if !ok {
		respondError(c, global.ValidationError{Field: "currency", Message: "Moneda no soportada", Code: "invalid_choice"})
		return
	}
	shop.SetCurrency(mode)
	c.JSON(http.StatusOK, global.SuccessResponse(shop.State()))
}

// RefreshCatalog runs a load cycle now instead of waiting for the next start.
func RefreshCatalog(c *gin.Context) {
	shop.Reload(c.Request.Context())
	c.JSON(http.StatusOK, global.SuccessResponse(shop.Catalog("", "")))
}

// StreamEvents pushes re-render hints over SSE until the client goes away.
func StreamEvents(c *gin.Context) {
	events, cancel := shop.Subscribe()
	defer cancel()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.SSEvent("state", shop.State())
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case e, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(string(e.Kind), e)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func GetCatalog(c *gin.Context) {
	var category models.Category
	if raw := c.Query("categoria"); raw != "" {
		category = models.ParseCategory(raw)
	}
	c.JSON(http.StatusOK, global.SuccessResponse(shop.Catalog(category, c.Query("q"))))
}

func productID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		respondError(c, global.ValidationError{Field: "id", Message: "Id de producto inválido", Code: "invalid_format"})
		return 0, false
	}
	return id, true
}

func GetProduct(c *gin.Context) {
	id, ok := productID(c)
	if !ok {
		return
	}
	view, err := shop.Product(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(view))
}

type selectRequest struct {
	PackageID string `json:"paquete_id" binding:"required"`
}

// SelectPackage opens the product if needed and marks the package selected.
func SelectPackage(c *gin.Context) {
	id, ok := productID(c)
	if !ok {
		return
	}
	var req selectRequest
	if !bindJSON(c, &req) {
		return
	}
	st := shop.State()
	if st.View != storefront.ViewProduct || st.ProductID != id {
		if err := shop.OpenProduct(id); err != nil {
			respondError(c, err)
			return
		}
	}
	if err := shop.SelectPackage(req.PackageID); err != nil {
		respondError(c, err)
		return
	}
	view, err := shop.Product(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(view))
}

func GetCart(c *gin.Context) {
	c.JSON(http.StatusOK, global.SuccessResponse(shop.Cart()))
}

func ClearCart(c *gin.Context) {
	shop.ClearCart(c.Request.Context())
	c.JSON(http.StatusOK, global.SuccessResponse(shop.Cart()))
}

type addLineRequest struct {
	ProductID int    `json:"producto_id"`
	PackageID string `json:"paquete_id"`
	UserID    string `json:"usuario_id"`
}

// AddCartLine adds the given package, or the current selection when no
// product is named.
func AddCartLine(c *gin.Context) {
	var req addLineRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()

	var (
		outcome cart.Outcome
		err     error
	)
	if req.ProductID == 0 {
		outcome, err = shop.AddToCart(ctx, req.UserID)
	} else {
		outcome, err = shop.AddPackage(ctx, req.ProductID, req.PackageID, req.UserID)
	}
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusOK
	if outcome == cart.Added {
		status = http.StatusCreated
	}
	c.JSON(status, global.SuccessResponse(map[string]interface{}{
		"outcome": outcome,
		"cart":    shop.Cart(),
	}))
}

func lineID(c *gin.Context) (int64, bool) {
	id, ok := models.ParseLineID(c.Param("id"))
	if !ok {
		respondError(c, global.ValidationError{Field: "id", Message: "Id de línea inválido", Code: "invalid_format"})
	}
	return id, ok
}

// lineResponse is the cart after a line write. Stale marks an id the cart no
// longer holds; the engine logs it and the client just re-renders.
type lineResponse struct {
	storefront.CartView
	Stale bool `json:"stale,omitempty"`
}

type quantityRequest struct {
	Delta int `json:"delta" binding:"required"`
}

func ChangeLineQuantity(c *gin.Context) {
	id, ok := lineID(c)
	if !ok {
		return
	}
	var req quantityRequest
	if !bindJSON(c, &req) {
		return
	}
	_, found := shop.ChangeQuantity(c.Request.Context(), id, req.Delta)
	c.JSON(http.StatusOK, global.SuccessResponse(lineResponse{CartView: shop.Cart(), Stale: !found}))
}

func RemoveCartLine(c *gin.Context) {
	id, ok := lineID(c)
	if !ok {
		return
	}
	found := shop.RemoveLine(c.Request.Context(), id)
	c.JSON(http.StatusOK, global.SuccessResponse(lineResponse{CartView: shop.Cart(), Stale: !found}))
}

func GetCheckout(c *gin.Context) {
	c.JSON(http.StatusOK, global.SuccessResponse(shop.Checkout()))
}

func BeginCheckout(c *gin.Context) {
	if err := shop.BeginCheckout(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(shop.Checkout()))
}

func SubmitCheckout(c *gin.Context) {
	var form checkout.Form
	if !bindJSON(c, &form) {
		return
	}
	result := shop.SubmitCheckout(c.Request.Context(), form)
	if result.Err != nil {
		if errors.Is(result.Err, checkout.ErrInProgress) {
			c.JSON(http.StatusConflict, global.ErrorResponse("Ya hay una compra en proceso", nil))
			return
		}
		status := global.HTTPStatus(result.Err)
		resp := global.ErrorResponse(global.UserMessage(result.Err), nil)
		var ve global.ValidationError
		if errors.As(result.Err, &ve) {
			resp.Errors = []global.ValidationError{ve}
		}
		if result.AuthRedirect {
			status = http.StatusUnauthorized
			resp.Redirect = string(storefront.ViewLogin)
		}
		resp.Data = result
		c.JSON(status, resp)
		return
	}
	resp := global.SuccessResponse(result)
	resp.Redirect = string(storefront.ViewCatalog)
	c.JSON(http.StatusOK, resp)
}

func GetSession(c *gin.Context) {
	s := shop.State().Session
	if s == nil {
		c.JSON(http.StatusOK, global.SuccessResponse(map[string]interface{}{"usuario": nil}))
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(map[string]interface{}{"usuario": s}))
}

func Login(c *gin.Context) {
	var req models.LoginRequest
	if !bindJSON(c, &req) {
		return
	}
	s, err := shop.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	resp := global.SuccessResponse(map[string]interface{}{"usuario": s})
	resp.Redirect = string(shop.CurrentView())
	c.JSON(http.StatusOK, resp)
}

func Register(c *gin.Context) {
	var req models.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := shop.Register(c.Request.Context(), req); err != nil {
		respondError(c, err)
		return
	}
	resp := global.SuccessResponse(map[string]string{"message": "Cuenta creada"})
	resp.Redirect = string(storefront.ViewLogin)
	c.JSON(http.StatusCreated, resp)
}

func Logout(c *gin.Context) {
	shop.Logout(c.Request.Context())
	c.JSON(http.StatusOK, global.SuccessResponse(shop.State()))
}

func GetAccount(c *gin.Context) {
	view, err := shop.Account(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(view))
}

func GetAttemptSummary(c *gin.Context) {
	summary, err := shop.AttemptSummary(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(summary))
}

func GetRecentAttempts(c *gin.Context) {
	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "20"), 10, 64)
	attempts, err := shop.RecentAttempts(c.Request.Context(), c.Query("email"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(attempts))
}

func GetAttemptReport(c *gin.Context) {
	report, err := shop.AttemptReport(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(report))
}
