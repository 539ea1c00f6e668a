package dto

// CreatePersonRequest 创建本地用户（管理接口）
type CreatePersonRequest struct {
	Name  string `json:"name" binding:"required,min=1,max=50"`
	Admin bool   `json:"admin"`
}

// TokenResponse 访问令牌
type TokenResponse struct {
	AccessToken string       `json:"access_token"`
	ExpiresIn   int          `json:"expires_in"`
	Person      *PersonBrief `json:"person"`
}
