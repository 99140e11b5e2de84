package docs

// @title PlasPrint IA API
// @version 1.0
// @description 基于工作表数据的问答服务：生成回答、美元金额换算、参考行与图片检索
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url http://www.swagger.io/support
// @contact.email support@swagger.io

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8080
// @BasePath /
// @schemes http https
