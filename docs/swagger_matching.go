package docs

// @title           Driver Match System API
// @version         1.0
// @description     Matching service broadcasts ride offers to eligible drivers, resolves their answers and assigns exactly one winner per booking. Supports WebSocket connections for drivers.
// @termsOfService  http://swagger.io/terms/

// @contact.name   API Support
// @contact.url    http://www.swagger.io/support
// @contact.email  support@swagger.io

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:3002
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
