package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"app/internal/config"
	"app/internal/domain/model"
	"app/internal/middleware"
	"app/internal/repository"
	"app/internal/usecase"

	"github.com/labstack/echo/v4"
)

// SuccessResponse は { message: string } の形。
type SuccessResponse struct {
	Message string `json:"message"`
}

type MedicineCreateRequest struct {
	SKU          string  `json:"sku"`
	Name         string  `json:"name"`
	Manufacturer string  `json:"manufacturer"`
	Price        float64 `json:"price"`
	Quantity     int64   `json:"quantity"`
	ExpiryDate   string  `json:"expiry_date"` // "2006-01-02"、省略可
}

type MedicineUpdateRequest struct {
	SKU          string  `json:"sku"`
	Name         string  `json:"name"`
	Manufacturer string  `json:"manufacturer"`
	Price        float64 `json:"price"`
	ExpiryDate   string  `json:"expiry_date"`
}

// 在庫調整の入力。
type StockAdjustRequest struct {
	ChangeAmount int64  `json:"change_amount"`
	Reason       string `json:"reason"`
	ChangedBy    string `json:"changed_by"`
}

// 在庫調整の出力。調整後のスナップショットを返す。
type StockAdjustResponse struct {
	Success  bool           `json:"success"`
	Medicine model.Medicine `json:"medicine"`
}

// /admin/medicines をまとめる
type AdminMedicineHandler struct {
	uc       *usecase.MedicineUsecase
	adjustUC *usecase.AdjustmentUsecase
	auditUC  *usecase.AuditLogUsecase
	users    repository.UserRepository
}

// DI
func NewAdminMedicineHandler(
	uc *usecase.MedicineUsecase,
	adjustUC *usecase.AdjustmentUsecase,
	auditUC *usecase.AuditLogUsecase,
	users repository.UserRepository,
) *AdminMedicineHandler {
	return &AdminMedicineHandler{
		uc:       uc,
		adjustUC: adjustUC,
		auditUC:  auditUC,
		users:    users,
	}
}

// adminを登録
func (h *AdminMedicineHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository) {
	admin := e.Group("/admin")

	admin.Use(middleware.AuthJWT(cfg))
	admin.Use(middleware.TokenVersionGuard(userRepo))
	admin.Use(middleware.AdminRoleGuard())

	admin.POST("/medicines", h.createMedicine)
	admin.PUT("/medicines/:id", h.updateMedicine)
	admin.DELETE("/medicines/:id", h.deleteMedicine)
	admin.POST("/medicines/:id/adjustments", h.adjustStock)
	admin.GET("/medicines/:id/adjustments", h.listAdjustments)
	admin.GET("/audit-logs", h.listAuditLogs)
}

func (h *AdminMedicineHandler) createMedicine(c echo.Context) error {
	var req MedicineCreateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body", Code: usecase.CodeInvalidInput})
	}

	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Code: usecase.CodeUnauthorized})
	}

	expiry, err := parseExpiry(req.ExpiryDate)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid expiry_date", Code: usecase.CodeInvalidInput})
	}

	_, err = h.uc.AdminCreateMedicine(
		c.Request().Context(),
		adminID,
		usecase.CreateMedicineInput{
			SKU:          req.SKU,
			Name:         req.Name,
			Manufacturer: req.Manufacturer,
			Price:        req.Price,
			Quantity:     req.Quantity,
			ExpiryDate:   expiry,
		},
	)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, SuccessResponse{Message: "created"})
}

func (h *AdminMedicineHandler) updateMedicine(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id", Code: usecase.CodeInvalidInput})
	}

	var req MedicineUpdateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body", Code: usecase.CodeInvalidInput})
	}

	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Code: usecase.CodeUnauthorized})
	}

	expiry, err := parseExpiry(req.ExpiryDate)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid expiry_date", Code: usecase.CodeInvalidInput})
	}

	err = h.uc.AdminUpdateMedicine(
		c.Request().Context(),
		adminID,
		id,
		usecase.UpdateMedicineInput{
			SKU:          req.SKU,
			Name:         req.Name,
			Manufacturer: req.Manufacturer,
			Price:        req.Price,
			ExpiryDate:   expiry,
		},
	)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, SuccessResponse{Message: "updated"})
}

func (h *AdminMedicineHandler) deleteMedicine(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id", Code: usecase.CodeInvalidInput})
	}

	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Code: usecase.CodeUnauthorized})
	}

	if err := h.uc.AdminDeleteMedicine(c.Request().Context(), adminID, id); err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, SuccessResponse{Message: "deleted"})
}

// POST /admin/medicines/:id/adjustments
func (h *AdminMedicineHandler) adjustStock(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id", Code: usecase.CodeInvalidInput})
	}

	var req StockAdjustRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body", Code: usecase.CodeInvalidInput})
	}

	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Code: usecase.CodeUnauthorized})
	}

	//changed_by省略時はログイン中ユーザーを記録する
	changedBy := req.ChangedBy
	if changedBy == "" {
		changedBy = h.actorLabel(c, adminID)
	}

	m, err := h.adjustUC.Adjust(
		c.Request().Context(),
		adminID,
		id,
		usecase.AdjustStockInput{
			ChangeAmount: req.ChangeAmount,
			Reason:       req.Reason,
			ChangedBy:    changedBy,
		},
	)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, StockAdjustResponse{
		Success:  true,
		Medicine: m,
	})
}

// GET /admin/medicines/:id/adjustments
func (h *AdminMedicineHandler) listAdjustments(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id", Code: usecase.CodeInvalidInput})
	}

	entries, err := h.adjustUC.History(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, entries)
}

// GET /admin/audit-logs
func (h *AdminMedicineHandler) listAuditLogs(c echo.Context) error {
	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Code: usecase.CodeUnauthorized})
	}

	filter := repository.AuditLogFilter{}

	if v := c.QueryParam("resource_id"); v != "" {
		x, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid resource_id", Code: usecase.CodeInvalidInput})
		}
		filter.ResourceID = &x
	}
	if v := c.QueryParam("action"); v != "" {
		a := model.AuditAction(v)
		filter.Action = &a
	}
	if v := c.QueryParam("limit"); v != "" {
		x, err := strconv.Atoi(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit", Code: usecase.CodeInvalidInput})
		}
		filter.Limit = x
	}
	if v := c.QueryParam("offset"); v != "" {
		x, err := strconv.Atoi(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid offset", Code: usecase.CodeInvalidInput})
		}
		filter.Offset = x
	}

	logs, err := h.auditUC.List(c.Request().Context(), adminID, filter)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, logs)
}

// 記録用のactor表記。emailが引ければemail、だめならIDで残す。
func (h *AdminMedicineHandler) actorLabel(c echo.Context, userID int64) string {
	u, err := h.users.FindByID(c.Request().Context(), userID)
	if err == nil && u != nil {
		return u.Email
	}
	return fmt.Sprintf("user:%d", userID)
}

// AuthJWTミドルウェアが入れたuser_idを取り出す。
func getUserIDFromContext(c echo.Context) (int64, bool) {
	raw := c.Get(middleware.CtxUserIDKey)
	id, ok := raw.(int64)
	if !ok || id <= 0 {
		return 0, false
	}
	return id, true
}

// "2006-01-02" をパース。空なら nil。
func parseExpiry(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
