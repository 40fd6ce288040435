package storefront

import (
	"context"
	"errors"
	"fmt"

	"julianmorley.ca/con-plar/topup-storefront/pkg/cart"
	"julianmorley.ca/con-plar/topup-storefront/pkg/global"
)

var errProductNotFound = global.NewServiceError(global.ErrNotFound, "Producto no encontrado", "PRODUCT_NOT_FOUND")

// OpenProduct shows the detail view of a product with nothing selected.
func (a *App) OpenProduct(productID int) error {
	if _, ok := a.catalog.Product(productID); !ok {
		return errProductNotFound
	}
	a.mu.Lock()
	a.navigateLocked(ViewProduct)
	a.productID = productID
	a.selected = nil
	a.mu.Unlock()

	a.events.publish(Event{Kind: EventView, View: ViewProduct})
	return nil
}

// SelectPackage marks a package of the open product as selected.
func (a *App) SelectPackage(packageID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.view != ViewProduct {
		return global.Required("producto", "Abre un producto primero")
	}
	product, ok := a.catalog.Product(a.productID)
	if !ok {
		return errProductNotFound
	}
	pkg := product.FindPackage(packageID)
	if pkg == nil {
		return global.NewServiceError(global.ErrNotFound, "Paquete no encontrado", "PACKAGE_NOT_FOUND")
	}
	selected := *pkg
	a.selected = &selected
	return nil
}

// AddToCart confirms the selected package of the open product into the cart.
func (a *App) AddToCart(ctx context.Context, userID string) (cart.Outcome, error) {
	a.mu.Lock()
	productID, selected := a.productID, a.selected
	a.mu.Unlock()

	product, ok := a.catalog.Product(productID)
	if !ok {
		return "", errProductNotFound
	}

	outcome, line, err := a.cart.AddOrMergeLine(ctx, product, selected, userID)
	if err != nil {
		a.setNotice(errorNotice(err))
		return "", err
	}

	a.mu.Lock()
	if a.productID == productID {
		a.selected = nil
	}
	a.mu.Unlock()

	msg := fmt.Sprintf("%s agregado al carrito", line.PaqueteNombre)
	if outcome == cart.Updated {
		msg = fmt.Sprintf("%s: cantidad actualizada a %d", line.PaqueteNombre, line.Cantidad)
	}
	a.setNotice(&Notice{Level: NoticeSuccess, Message: msg})
	return outcome, nil
}

// AddPackage opens productID, selects packageID and adds it in one step.
func (a *App) AddPackage(ctx context.Context, productID int, packageID, userID string) (cart.Outcome, error) {
	if err := a.OpenProduct(productID); err != nil {
		return "", err
	}
	if packageID != "" {
		if err := a.SelectPackage(packageID); err != nil {
			return "", err
		}
	}
	return a.AddToCart(ctx, userID)
}

// ChangeQuantity adjusts a line by delta. Unknown ids are ignored.
func (a *App) ChangeQuantity(ctx context.Context, lineID int64, delta int) (cart.Change, bool) {
	change, ok := a.cart.ChangeQuantity(ctx, lineID, delta)
	if ok && change.Removed {
		a.setNotice(&Notice{Level: NoticeInfo, Message: fmt.Sprintf("%s eliminado del carrito", change.Line.PaqueteNombre)})
	}
	return change, ok
}

func (a *App) RemoveLine(ctx context.Context, lineID int64) bool {
	line, ok := a.cart.RemoveLine(ctx, lineID)
	if ok {
		a.setNotice(&Notice{Level: NoticeInfo, Message: fmt.Sprintf("%s eliminado del carrito", line.PaqueteNombre)})
	}
	return ok
}

func (a *App) ClearCart(ctx context.Context) {
	a.cart.Clear(ctx)
	a.setNotice(&Notice{Level: NoticeInfo, Message: "Carrito vaciado"})
}

func errorNotice(err error) *Notice {
	n := &Notice{Level: NoticeError, Message: global.UserMessage(err)}
	var ve global.ValidationError
	if errors.As(err, &ve) {
		n.Field = ve.Field
	}
	return n
}
