package identity

type nameTable struct {
	first []string
	last  []string
}

// DefaultLocales weights the workforce mix of a multinational enterprise.
var DefaultLocales = []LocaleWeight{
	{Locale: "en_US", Weight: 0.30},
	{Locale: "en_GB", Weight: 0.10},
	{Locale: "hi_IN", Weight: 0.15},
	{Locale: "de_DE", Weight: 0.08},
	{Locale: "fr_FR", Weight: 0.07},
	{Locale: "es_ES", Weight: 0.05},
	{Locale: "it_IT", Weight: 0.05},
	{Locale: "ja_JP", Weight: 0.05},
	{Locale: "zh_CN", Weight: 0.05},
	{Locale: "pt_BR", Weight: 0.05},
	{Locale: "en_CA", Weight: 0.05},
}

var nameTables = map[string]nameTable{
	"en_US": {
		first: []string{"James", "Mary", "Robert", "Patricia", "John", "Jennifer", "Michael", "Linda", "David", "Elizabeth", "William", "Barbara", "Richard", "Susan", "Joseph", "Jessica", "Thomas", "Sarah", "Christopher", "Karen", "Daniel", "Nancy", "Matthew", "Lisa"},
		last:  []string{"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia", "Miller", "Davis", "Rodriguez", "Martinez", "Hernandez", "Lopez", "Wilson", "Anderson", "Thomas", "Taylor", "Moore", "Jackson", "Martin", "Lee", "Thompson", "White", "Harris", "Clark"},
	},
	"en_GB": {
		first: []string{"Oliver", "Amelia", "George", "Isla", "Harry", "Ava", "Jack", "Emily", "Charlie", "Sophie", "Thomas", "Grace", "Alfie", "Poppy", "Oscar", "Ella", "Henry", "Freya", "Archie", "Lily"},
		last:  []string{"Smith", "Jones", "Taylor", "Brown", "Williams", "Wilson", "Evans", "Davies", "Roberts", "Walker", "Wright", "Thompson", "Robinson", "Hughes", "Edwards", "Green", "Hall", "Wood", "Harris", "Lewis"},
	},
	"hi_IN": {
		first: []string{"Aarav", "Diya", "Vivaan", "Ananya", "Aditya", "Saanvi", "Arjun", "Isha", "Rohan", "Priya", "Karan", "Neha", "Rahul", "Pooja", "Vikram", "Kavya", "Siddharth", "Meera", "Amit", "Sneha"},
		last:  []string{"Sharma", "Verma", "Patel", "Gupta", "Singh", "Kumar", "Reddy", "Iyer", "Nair", "Mehta", "Joshi", "Chopra", "Malhotra", "Desai", "Rao", "Kapoor", "Bhat", "Menon", "Agarwal", "Das"},
	},
	"de_DE": {
		first: []string{"Lukas", "Mia", "Leon", "Emma", "Jonas", "Hannah", "Felix", "Lea", "Maximilian", "Lena", "Paul", "Anna", "Jürgen", "Sophie", "Moritz", "Marie", "Tobias", "Laura", "Sebastian", "Katrin"},
		last:  []string{"Müller", "Schmidt", "Schneider", "Fischer", "Weber", "Meyer", "Wagner", "Becker", "Schulz", "Hoffmann", "Schäfer", "Koch", "Bauer", "Richter", "Klein", "Wolf", "Schröder", "Neumann", "Schwarz", "Zimmermann"},
	},
	"fr_FR": {
		first: []string{"Lucas", "Léa", "Hugo", "Chloé", "Louis", "Manon", "Gabriel", "Camille", "Jules", "Inès", "François", "Zoé", "Raphaël", "Louise", "Théo", "Élodie", "Mathis", "Juliette", "Nathan", "Margaux"},
		last:  []string{"Martin", "Bernard", "Dubois", "Thomas", "Robert", "Richard", "Petit", "Durand", "Leroy", "Moreau", "Simon", "Laurent", "Lefèvre", "Michel", "Garcia", "David", "Bertrand", "Roux", "Vincent", "Fournier"},
	},
	"es_ES": {
		first: []string{"Hugo", "Lucía", "Martín", "Sofía", "Pablo", "María", "Álvaro", "Paula", "Javier", "Carmen", "José", "Elena", "Adrián", "Marta", "Sergio", "Irene", "Diego", "Nuria", "Raúl", "Ángela"},
		last:  []string{"García", "Fernández", "González", "Rodríguez", "López", "Martínez", "Sánchez", "Pérez", "Gómez", "Martín", "Jiménez", "Ruiz", "Hernández", "Díaz", "Moreno", "Muñoz", "Álvarez", "Romero", "Navarro", "Torres"},
	},
	"it_IT": {
		first: []string{"Leonardo", "Sofia", "Francesco", "Giulia", "Alessandro", "Aurora", "Lorenzo", "Alice", "Mattia", "Ginevra", "Andrea", "Chiara", "Gabriele", "Beatrice", "Riccardo", "Martina", "Tommaso", "Francesca", "Niccolò", "Elisa"},
		last:  []string{"Rossi", "Russo", "Ferrari", "Esposito", "Bianchi", "Romano", "Colombo", "Ricci", "Marino", "Greco", "Bruno", "Gallo", "Conti", "De Luca", "Mancini", "Costa", "Giordano", "Rizzo", "Lombardi", "Moretti"},
	},
	"ja_JP": {
		first: []string{"Haruto", "Yui", "Sota", "Aoi", "Yuto", "Hina", "Riku", "Sakura", "Kaito", "Yuna", "Takumi", "Mio", "Ren", "Rin", "Hiroshi", "Akiko", "Kenji", "Naoko", "Daiki", "Emi"},
		last:  []string{"Sato", "Suzuki", "Takahashi", "Tanaka", "Watanabe", "Ito", "Yamamoto", "Nakamura", "Kobayashi", "Kato", "Yoshida", "Yamada", "Sasaki", "Yamaguchi", "Matsumoto", "Inoue", "Kimura", "Hayashi", "Shimizu", "Mori"},
	},
	"zh_CN": {
		first: []string{"Wei", "Fang", "Jing", "Lei", "Min", "Yan", "Jun", "Li", "Hao", "Xin", "Ming", "Hui", "Tao", "Ying", "Bo", "Lan", "Qiang", "Mei", "Yong", "Na"},
		last:  []string{"Wang", "Li", "Zhang", "Liu", "Chen", "Yang", "Huang", "Zhao", "Wu", "Zhou", "Xu", "Sun", "Ma", "Zhu", "Hu", "Guo", "He", "Lin", "Gao", "Luo"},
	},
	"pt_BR": {
		first: []string{"Miguel", "Helena", "Arthur", "Alice", "Heitor", "Laura", "Bernardo", "Manuela", "Davi", "Valentina", "Théo", "Sophia", "Lorenzo", "Isabella", "Gabriel", "Heloísa", "Pedro", "Luísa", "João", "Júlia"},
		last:  []string{"Silva", "Santos", "Oliveira", "Souza", "Rodrigues", "Ferreira", "Alves", "Pereira", "Lima", "Gomes", "Costa", "Ribeiro", "Martins", "Carvalho", "Almeida", "Lopes", "Soares", "Fernandes", "Vieira", "Barbosa"},
	},
	"en_CA": {
		first: []string{"Liam", "Olivia", "Noah", "Charlotte", "Benjamin", "Emma", "Lucas", "Amelia", "Ethan", "Chloe", "Owen", "Abigail", "Logan", "Hannah", "Nathan", "Madison", "Jacob", "Avery", "Samuel", "Maeve"},
		last:  []string{"Tremblay", "Roy", "Gagnon", "Côté", "Bouchard", "Gauthier", "Morin", "Lavoie", "Fortin", "Gagné", "Ouellet", "Pelletier", "Bélanger", "Lévesque", "Campbell", "MacDonald", "Stewart", "Fraser", "McLean", "Murphy"},
	},
}

// SupportedLocale reports whether a built-in name table exists for locale.
func SupportedLocale(locale string) bool {
	_, ok := nameTables[locale]
	return ok
}
