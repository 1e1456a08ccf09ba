package services

import "errors"

// 业务错误分类。handlers 层通过 errors.Is 将其映射为 HTTP 状态码与
// 用户可见的提示文案；仓储/平台错误一律包装后向上传递，不直接出现在响应里。
var (
	ErrNotAuthenticated = errors.New("用户未登录")
	ErrNotFound         = errors.New("目标不存在")
	ErrMustBeFriends    = errors.New("需要先成为好友")
	ErrUnauthorizedConv = errors.New("无权访问该会话")
	ErrInvalidContent   = errors.New("消息内容不合法")
	ErrValidation       = errors.New("负载校验失败")

	ErrSelfFriendship     = errors.New("不能添加自己为好友")
	ErrFriendshipExists   = errors.New("好友关系已存在")
	ErrFriendshipBlocked  = errors.New("对方已屏蔽该请求")
	ErrNotRequestTarget   = errors.New("只有被请求方可以处理该请求")
	ErrRoomFull           = errors.New("自习室人数已满")
	ErrAlreadyRoomMember  = errors.New("已经是该自习室成员")
	ErrNotRoomMember      = errors.New("不是该自习室成员")
	ErrRoomLimitExceeded  = errors.New("免费用户可创建的自习室数量已达上限")
	ErrRoomOwnerLeave     = errors.New("房主不能退出自己的自习室")
	ErrUserExists         = errors.New("用户名或邮箱已被注册")
	ErrInvalidCredentials = errors.New("用户名或密码错误")
)
