package middleware

// Ключи значений, которые middleware кладут в gin.Context
const (
	ContextKeyShopScope = "shop_scope"
	ContextKeyAdmin     = "admin_username"
	ContextKeyMergedID  = "merged_id"
)
