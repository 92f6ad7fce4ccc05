package service

import "time"

// nowFunc 返回毫秒精度的当前时间；时间线分值与存储都只到毫秒
var nowFunc = func() time.Time { return time.UnixMilli(time.Now().UnixMilli()) }
