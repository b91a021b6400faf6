package docs

// @title 商品推荐服务 API
// @version 1.0
// @description 基于购买历史的混合商品推荐服务（内容推荐 + 协同过滤 + 热门兜底）
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url http://www.swagger.io/support
// @contact.email support@swagger.io

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8080
// @BasePath /
// @schemes http https
