package handler

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/thirtybees/blocknewsletter/internal/captcha"
	"github.com/thirtybees/blocknewsletter/internal/domain/entity"
	"github.com/thirtybees/blocknewsletter/internal/handler/dto"
	"github.com/thirtybees/blocknewsletter/internal/middleware"
	"github.com/thirtybees/blocknewsletter/internal/service"
)

// SettingsManager reads and updates module settings
type SettingsManager interface {
	Get(ctx context.Context) (*service.Settings, error)
	Update(ctx context.Context, input service.UpdateSettingsInput) (*service.Settings, error)
}

// CaptchaCatalog lists the captcha providers available right now
type CaptchaCatalog interface {
	Providers(ctx context.Context) []captcha.Provider
}

// SubscriberLister pages the merged subscriber list
type SubscriberLister interface {
	List(ctx context.Context, q service.SubscriberListQuery) (*service.SubscriberPage, error)
}

// SubscriberToggler flips a row of the merged list
type SubscriberToggler interface {
	ToggleMergedSubscriber(ctx context.Context, id entity.MergedID) (bool, error)
}

// SubscriberExporter collects the rows of an export
type SubscriberExporter interface {
	Collect(ctx context.Context, filter service.ExportFilter) ([]entity.SubscriberRecord, error)
}

// AdminHandler обрабатывает запросы back-office модуля рассылки
type AdminHandler struct {
	settings SettingsManager
	captchas CaptchaCatalog
	lister   SubscriberLister
	toggler  SubscriberToggler
	exporter SubscriberExporter
	log      *zap.Logger
}

// NewAdminHandler создает новый обработчик back-office
func NewAdminHandler(
	settings SettingsManager,
	captchas CaptchaCatalog,
	lister SubscriberLister,
	toggler SubscriberToggler,
	exporter SubscriberExporter,
	log *zap.Logger,
) *AdminHandler {
	return &AdminHandler{
		settings: settings,
		captchas: captchas,
		lister:   lister,
		toggler:  toggler,
		exporter: exporter,
		log:      log,
	}
}

// GetSettings возвращает текущие настройки
func (h *AdminHandler) GetSettings(c *gin.Context) {
	settings, err := h.settings.Get(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

// UpdateSettings применяет частичное обновление настроек
func (h *AdminHandler) UpdateSettings(c *gin.Context) {
	var input service.UpdateSettingsInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBadRequest(c, err)
		return
	}

	if input.CaptchaProvider != nil {
		id := strings.TrimSpace(*input.CaptchaProvider)
		if !h.knownCaptcha(c.Request.Context(), id) {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown captcha provider %q", id), "error_type": "unknown_captcha"})
			return
		}
	}

	settings, err := h.settings.Update(c.Request.Context(), input)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	h.log.Info("newsletter settings updated", zap.String("admin", c.GetString(middleware.ContextKeyAdmin)))
	c.JSON(http.StatusOK, settings)
}

func (h *AdminHandler) knownCaptcha(ctx context.Context, id string) bool {
	if id == "" || id == captcha.NoneID {
		return true
	}
	for _, p := range h.captchas.Providers(ctx) {
		if p.ID == id {
			return true
		}
	}
	return false
}

// ListCaptchas возвращает доступные captcha-провайдеры, "none" всегда первым
func (h *AdminHandler) ListCaptchas(c *gin.Context) {
	providers := append([]captcha.Provider{{ID: captcha.NoneID, Name: "None"}}, h.captchas.Providers(c.Request.Context())...)
	c.JSON(http.StatusOK, gin.H{"providers": providers})
}

// ListSubscribers возвращает страницу объединённого списка подписчиков
func (h *AdminHandler) ListSubscribers(c *gin.Context) {
	page, err := optionalInt(c.Query("page"))
	if err != nil {
		respondBadRequest(c, fmt.Errorf("page: %w", err))
		return
	}
	pageSize, err := optionalInt(c.Query("page_size"))
	if err != nil {
		respondBadRequest(c, fmt.Errorf("page_size: %w", err))
		return
	}
	shopID, err := optionalShopID(c.Query("shop"))
	if err != nil {
		respondBadRequest(c, fmt.Errorf("shop: %w", err))
		return
	}

	result, err := h.lister.List(c.Request.Context(), service.SubscriberListQuery{
		Search:   c.Query("search"),
		ShopID:   shopID,
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ToggleSubscriber переключает подписку строки объединённого списка
func (h *AdminHandler) ToggleSubscriber(c *gin.Context) {
	value, ok := c.Get(middleware.ContextKeyMergedID)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid id", "error_type": "invalid_request"})
		return
	}
	id := value.(entity.MergedID)

	subscribed, err := h.toggler.ToggleMergedSubscriber(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToggleSubscriberResponse{ID: id.String(), Subscribed: subscribed})
}

// Export отдаёт выгрузку подписчиков в CSV или XLSX
func (h *AdminHandler) Export(c *gin.Context) {
	filter, err := exportFilterFromQuery(c)
	if err != nil {
		respondBadRequest(c, err)
		return
	}

	format := strings.ToLower(c.DefaultQuery("format", "csv"))
	if format != "csv" && format != "xlsx" {
		respondBadRequest(c, fmt.Errorf("unsupported format %q", format))
		return
	}

	records, err := h.exporter.Collect(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	var buf bytes.Buffer
	contentType := "text/csv; charset=utf-8"
	if format == "xlsx" {
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		err = service.WriteXLSX(&buf, records)
	} else {
		err = service.WriteCSV(&buf, records)
	}
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	h.log.Info("newsletter export generated",
		zap.String("format", format),
		zap.Int("rows", len(records)),
		zap.String("admin", c.GetString(middleware.ContextKeyAdmin)))

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", service.ExportFileName(format)))
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

func exportFilterFromQuery(c *gin.Context) (service.ExportFilter, error) {
	audience, err := service.ParseExportCode(c.Query("audience"))
	if err != nil {
		return service.ExportFilter{}, fmt.Errorf("audience: %w", err)
	}
	optin, err := service.ParseExportCode(c.Query("optin"))
	if err != nil {
		return service.ExportFilter{}, fmt.Errorf("optin: %w", err)
	}
	country, err := service.ParseExportCode(c.Query("country"))
	if err != nil || country < 0 {
		return service.ExportFilter{}, fmt.Errorf("invalid country %q", c.Query("country"))
	}
	shopID, err := optionalShopID(c.Query("shop"))
	if err != nil {
		return service.ExportFilter{}, fmt.Errorf("shop: %w", err)
	}

	filter := service.ExportFilter{
		Audience:  service.Audience(audience),
		Optin:     service.OptinFilter(optin),
		CountryID: uint(country),
		ShopID:    shopID,
	}
	if err := filter.Validate(); err != nil {
		return service.ExportFilter{}, err
	}
	return filter, nil
}

func optionalInt(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

// optionalShopID: пусто или 0 означает все магазины
func optionalShopID(raw string) (*uint, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return nil, err
	}
	if id == 0 {
		return nil, nil
	}
	shopID := uint(id)
	return &shopID, nil
}
