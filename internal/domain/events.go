package domain

// Event — закрытое множество событий контента. Новые варианты
// добавляются только здесь, вместе с обработкой в диспетчере.
type Event interface {
	isEvent()
}

// PostCreated возникает после фиксации новой публикации и её связок
// с рубриками в хранилище.
type PostCreated struct {
	Post       Post
	Categories []Category
}

// PostCategoryLinked возникает после создания новой связки публикации
// с рубрикой. Повторная связка события не порождает.
type PostCategoryLinked struct {
	Post     Post
	Category Category
}

// UserRegistered возникает после регистрации пользователя.
type UserRegistered struct {
	User User
}

func (PostCreated) isEvent()        {}
func (PostCategoryLinked) isEvent() {}
func (UserRegistered) isEvent()     {}
