package core

const (
	DefaultColor = "#3498db"
	DefaultIcon  = "💰"
)

// DefaultCategories are the shared categories every owner can see.
// IDs match the rows seeded by the initial migration.
func DefaultCategories() []Category {
	return []Category{
		{ID: 1, Name: "Salario", Type: Income, Color: "#27ae60", Icon: "💼", IsDefault: true},
		{ID: 2, Name: "Freelance", Type: Income, Color: "#3498db", Icon: "💻", IsDefault: true},
		{ID: 3, Name: "Inversiones", Type: Income, Color: "#f39c12", Icon: "📈", IsDefault: true},
		{ID: 4, Name: "Ventas", Type: Income, Color: "#e74c3c", Icon: "🛍️", IsDefault: true},
		{ID: 5, Name: "Otros ingresos", Type: Income, Color: "#9b59b6", Icon: "💰", IsDefault: true},
		{ID: 6, Name: "Alimentación", Type: Expense, Color: "#e74c3c", Icon: "🍽️", IsDefault: true},
		{ID: 7, Name: "Transporte", Type: Expense, Color: "#3498db", Icon: "🚗", IsDefault: true},
		{ID: 8, Name: "Vivienda", Type: Expense, Color: "#27ae60", Icon: "🏠", IsDefault: true},
		{ID: 9, Name: "Entretenimiento", Type: Expense, Color: "#f39c12", Icon: "🎬", IsDefault: true},
		{ID: 10, Name: "Salud", Type: Expense, Color: "#e67e22", Icon: "🏥", IsDefault: true},
		{ID: 11, Name: "Ropa", Type: Expense, Color: "#9b59b6", Icon: "👕", IsDefault: true},
		{ID: 12, Name: "Educación", Type: Expense, Color: "#34495e", Icon: "📚", IsDefault: true},
		{ID: 13, Name: "Otros gastos", Type: Expense, Color: "#95a5a6", Icon: "💸", IsDefault: true},
	}
}
